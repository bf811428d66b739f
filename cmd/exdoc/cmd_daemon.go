package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the exdoc daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the exdoc daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var logsTail int64

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon logs",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().Int64Var(&logsTail, "bytes", 4096, "How much of the end of the log to show")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg)
	out := cmd.OutOrStdout()

	if client.healthy(cmd.Context()) {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("setup config directory: %w", err)
	}
	bin, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	daemon := exec.Command(bin)
	daemon.Dir = dir
	configureDaemonProcess(daemon)
	if err := daemon.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if client.healthy(cmd.Context()) {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", client.baseURL)
			return nil
		}
		fmt.Fprint(out, ".")
	}
	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'exdoc logs')")
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg)
	out := cmd.OutOrStdout()

	if !client.healthy(cmd.Context()) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	pid, err := readPID()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !client.healthy(cmd.Context()) {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}
	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

func readPID() (int, error) {
	dir, err := config.Dir()
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// daemonStatus mirrors GET /v1/status
type daemonStatus struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	LLMProviders  []string `json:"llm_providers"`
	Runner        string   `json:"runner"`
	RunningRuns   int      `json:"running_runs"`
	Storage       string   `json:"storage"`
	Queue         bool     `json:"queue"`
	Cache         bool     `json:"cache"`
	Auth          bool     `json:"auth"`
	UptimeSeconds float64  `json:"uptime_seconds"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newDaemonClient(cfg)
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	var st daemonStatus
	if err := client.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	providers := strings.Join(st.LLMProviders, ", ")
	if providers == "" {
		providers = "none (hints disabled)"
	}
	fmt.Fprintf(out, "Status:    %s\n", st.Status)
	fmt.Fprintf(out, "Version:   %s\n", st.Version)
	fmt.Fprintf(out, "Address:   %s\n", client.baseURL)
	fmt.Fprintf(out, "Uptime:    %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(out, "Runner:    %s (%d running)\n", st.Runner, st.RunningRuns)
	fmt.Fprintf(out, "Providers: %s\n", providers)
	fmt.Fprintf(out, "Storage:   %s\n", st.Storage)
	fmt.Fprintf(out, "Queue:     %s\n", onOff(st.Queue))
	fmt.Fprintf(out, "Cache:     %s\n", onOff(st.Cache))
	fmt.Fprintf(out, "Auth:      %s\n", onOff(st.Auth))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(dir, "logs", "exdocd.log")

	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	return tailLog(cmd.OutOrStdout(), file, logsTail)
}

// tailLog prints the last n bytes of f, starting at a line boundary.
func tailLog(w io.Writer, f *os.File, n int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	offset := max(info.Size()-n, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(f)
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}

// findDaemonBinary locates the exdocd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("exdocd"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "exdocd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/exdocd", "./exdocd", "./cmd/exdocd/exdocd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("exdocd binary not found (build with 'go build ./cmd/exdocd')")
}

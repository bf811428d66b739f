package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "exdocd.pid"

var (
	baseURL string
	timeout time.Duration
)

// rootCmd is the exdoc command line
var rootCmd = &cobra.Command{
	Use:   "exdoc",
	Short: "Exercise documents: quizzes and Python exercises",
	Long: `exdoc manages the exdoc daemon and talks to it.

The daemon runs Python, generates hints and stores quiz answers for the
editor. The CLI starts and stops it, runs and grades code, reads answer
statistics, switches documents between author and learner mode, and serves
the document tools over MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Daemon URL (default: client.base_url from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (default: client.timeout from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd, configCmd, tokenCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(runCmd, gradeCmd, hintCmd, submitCmd, statsCmd)
	rootCmd.AddCommand(modeCmd, docCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "exdoc %s\n", Version)
	},
}

// loadConfig reads the local config and applies the persistent flags.
func loadConfig() (*config.LocalConfig, error) {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.Client.Timeout = timeout
	}
	return cfg, nil
}

// daemonClient calls the daemon endpoints the remote clients do not cover.
type daemonClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newDaemonClient(cfg *config.LocalConfig) *daemonClient {
	return &daemonClient{
		baseURL: strings.TrimRight(cfg.Client.BaseURL, "/"),
		token:   cfg.Client.Token,
		http:    &http.Client{Timeout: cfg.Client.Timeout},
	}
}

// do sends body as JSON (when non-nil) and decodes the reply into out.
// Error replies are turned into their message.
func (c *daemonClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s (start it with 'exdoc start'): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s (HTTP %d)", e.Message, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// healthy reports whether the daemon answers its health check.
func (c *daemonClient) healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil) == nil
}

// readSource reads a code file, or stdin for "-".
func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// renderProgressBar draws value (0..1) as a fixed width bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

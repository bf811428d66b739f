package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// MainFile is the name the submitted code is written under.
const MainFile = "main.py"

// Executor runs one Python program to completion.
type Executor interface {
	// Run executes code and returns its output. A program that ran and
	// failed is a Result with a non-zero exit code, not an error.
	Run(ctx context.Context, code string) (*Result, error)
}

// Result is the outcome of one program run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// OK reports a clean exit.
func (r *Result) OK() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// LocalExecutor runs code with the host Python interpreter (for development)
type LocalExecutor struct {
	python  string
	workDir string
}

// NewLocalExecutor creates a local executor. An empty python uses python3;
// an empty workDir uses the system temp directory.
func NewLocalExecutor(python, workDir string) *LocalExecutor {
	if python == "" {
		python = "python3"
	}
	return &LocalExecutor{python: python, workDir: workDir}
}

func (e *LocalExecutor) Run(ctx context.Context, code string) (*Result, error) {
	tmpDir, err := createTempCodeDir(e.workDir, map[string]string{MainFile: code})
	if err != nil {
		return nil, fmt.Errorf("prepare code dir: %w", err)
	}
	defer removeTempDir(tmpDir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.python, "-I", MainFile)
	cmd.Dir = tmpDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1", "PATH=" + os.Getenv("PATH")}

	start := time.Now()
	err = cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("run %s: %w", e.python, err)
	}
	return result, nil
}

// createTempCodeDir writes files into a fresh directory under base.
func createTempCodeDir(base string, files map[string]string) (string, error) {
	tmpDir, err := os.MkdirTemp(base, "exdoc-run-*")
	if err != nil {
		return "", err
	}

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)
		if dir := filepath.Dir(filePath); dir != tmpDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				removeTempDir(tmpDir)
				return "", err
			}
		}
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			removeTempDir(tmpDir)
			return "", err
		}
	}

	return tmpDir, nil
}

func removeTempDir(dir string) {
	os.RemoveAll(dir)
}

var _ Executor = (*LocalExecutor)(nil)

package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerConfig holds Docker executor configuration
type DockerConfig struct {
	Image      string
	MemoryMB   int
	CPULimit   float64
	NetworkOff bool
}

// DefaultDockerConfig returns a locked-down python image setup.
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Image:      "python:3.12-alpine",
		MemoryMB:   128,
		CPULimit:   0.5,
		NetworkOff: true,
	}
}

// DockerExecutor runs every program in a throwaway container.
type DockerExecutor struct {
	client *client.Client
	cfg    DockerConfig
}

// NewDockerExecutor connects to the Docker daemon from the environment.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	def := DefaultDockerConfig()
	if cfg.Image == "" {
		cfg.Image = def.Image
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = def.MemoryMB
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = def.CPULimit
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerExecutor{client: cli, cfg: cfg}, nil
}

func (e *DockerExecutor) Run(ctx context.Context, code string) (*Result, error) {
	if err := e.ensureImage(ctx); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           e.cfg.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      "/workspace",
		NetworkDisabled: e.cfg.NetworkOff,
		Labels:          map[string]string{"exdoc.runner": "true"},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(e.cfg.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(e.cfg.CPULimit * 1e9),
		},
	}

	created, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		// the run context may already be done
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.client.ContainerRemove(rmCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	archive, err := tarFiles(map[string]string{MainFile: code})
	if err != nil {
		return nil, err
	}
	if err := e.client.CopyToContainer(ctx, created.ID, "/workspace", archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("copy code: %w", err)
	}

	return e.exec(ctx, created.ID, []string{"python3", "-I", MainFile})
}

func (e *DockerExecutor) exec(ctx context.Context, containerID string, cmd []string) (*Result, error) {
	execResp, err := e.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   "/workspace",
		Env:          []string{"PYTHONUNBUFFERED=1"},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attachResp, err := e.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	_, copyErr := io.Copy(&outBuf, attachResp.Reader)
	duration := time.Since(start)

	if ctx.Err() != nil {
		stdout, stderr := demuxOutput(outBuf.Bytes())
		return &Result{Stdout: stdout, Stderr: stderr, ExitCode: -1, TimedOut: true, Duration: duration}, nil
	}
	if copyErr != nil {
		return nil, fmt.Errorf("read exec output: %w", copyErr)
	}

	inspectResp, err := e.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr := demuxOutput(outBuf.Bytes())
	return &Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: inspectResp.ExitCode,
		Duration: duration,
	}, nil
}

// Close closes the Docker client.
func (e *DockerExecutor) Close() error {
	return e.client.Close()
}

func (e *DockerExecutor) ensureImage(ctx context.Context) error {
	if _, err := e.client.ImageInspect(ctx, e.cfg.Image); err == nil {
		return nil
	}

	reader, err := e.client.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", e.cfg.Image, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func tarFiles(files map[string]string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		header := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// demuxOutput splits Docker's multiplexed stream. Each frame starts with an
// 8-byte header: [type][0][0][0][size x4], type 1 = stdout, 2 = stderr.
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder
	raw := data

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		size = min(size, len(data))

		switch streamType {
		case 1:
			outBuf.Write(data[:size])
		case 2:
			errBuf.Write(data[:size])
		}
		data = data[size:]
	}

	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(raw) > 0 && raw[0] != 1 && raw[0] != 2 {
		return string(raw), ""
	}
	return outBuf.String(), errBuf.String()
}

var _ Executor = (*DockerExecutor)(nil)

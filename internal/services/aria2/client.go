package aria2

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pedrox86lopes/MagnetStream/internal/services"
)

// DefaultBinary is the aria2 command-line binary name.
const DefaultBinary = "aria2c"

// DefaultProbeTimeout bounds the version probe so a wedged binary cannot
// stall run startup.
const DefaultProbeTimeout = 5 * time.Second

// Process is a handle to one running aria2c invocation. Lines delivers the
// merged stdout/stderr stream and is closed when the stream ends; Done is
// closed once the process has been reaped, after which Err reports its exit
// status.
type Process interface {
	Lines() <-chan string
	Done() <-chan struct{}
	Err() error
	Terminate(grace time.Duration)
}

// Launcher abstracts aria2c invocation for testability.
type Launcher interface {
	Probe(ctx context.Context) error
	Launch(ctx context.Context, magnet, destDir string) (Process, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// WithProbeTimeout overrides the version probe timeout.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.probeTimeout = timeout
		}
	}
}

// CLI wraps the aria2 command-line downloader.
type CLI struct {
	binary       string
	probeTimeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: DefaultBinary, probeTimeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Version runs the short-timeout version probe and returns the first line of
// its output.
func (c *CLI) Version(ctx context.Context) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, c.binary, "--version") //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		switch {
		case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
			return "", services.Wrap(services.ErrUnavailable, "aria2", "probe", "version check timed out", nil)
		case errors.Is(err, exec.ErrNotFound):
			return "", services.Wrap(services.ErrUnavailable, "aria2", "probe", fmt.Sprintf("binary %q not found, install aria2", c.binary), nil)
		default:
			return "", services.Wrap(services.ErrUnavailable, "aria2", "probe", "version check failed", err)
		}
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}

// Probe verifies the binary is invocable.
func (c *CLI) Probe(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}

// Arguments builds the fixed invocation for one magnet fetch. The parameters
// are deliberately not user-configurable: no seeding after completion, no
// pre-allocation, bounded connection/tracker timeouts, and a bounded retry
// count keep the process terminable.
func Arguments(magnet, destDir string) []string {
	return []string{
		magnet,
		"--dir", destDir,
		"--seed-time=0",
		"--file-allocation=none",
		"--continue=true",
		"--max-connection-per-server=16",
		"--split=16",
		"--min-split-size=1M",
		"--max-concurrent-downloads=1",
		"--summary-interval=2",
		"--console-log-level=warn",
		"--log-level=warn",
		"--bt-tracker-timeout=10",
		"--bt-tracker-connect-timeout=5",
		"--dht-entry-point-timeout=10",
		"--timeout=30",
		"--retry-wait=3",
		"--max-tries=3",
	}
}

// Launch spawns aria2c with output streams merged and begins streaming
// lines. Ownership of the returned handle transfers to the caller, which
// must observe Done (terminating first if needed) before discarding it.
func (c *CLI) Launch(ctx context.Context, magnet, destDir string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(magnet) == "" {
		return nil, errors.New("magnet link required")
	}
	if strings.TrimSpace(destDir) == "" {
		return nil, errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	cmd := exec.Command(c.binary, Arguments(magnet, destDir)...) //nolint:gosec
	// Own process group so termination reaches any children aria2c spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, services.Wrap(services.ErrUnavailable, "aria2", "launch", fmt.Sprintf("binary %q not found", c.binary), nil)
		}
		return nil, fmt.Errorf("start aria2c: %w", err)
	}

	proc := &process{
		cmd:      cmd,
		lines:    make(chan string, 64),
		waitDone: make(chan struct{}),
	}
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			proc.lines <- scanner.Text()
		}
		close(proc.lines)
		err := cmd.Wait()
		proc.mu.Lock()
		proc.waitErr = err
		proc.mu.Unlock()
		close(proc.waitDone)
	}()
	return proc, nil
}

type process struct {
	cmd      *exec.Cmd
	lines    chan string
	waitDone chan struct{}
	mu       sync.Mutex
	waitErr  error
	termOnce sync.Once
}

func (p *process) Lines() <-chan string { return p.lines }

func (p *process) Done() <-chan struct{} { return p.waitDone }

// Err reports the exit status. It stays nil until Done is closed, so it is
// safe to call while the process is still running.
func (p *process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Terminate signals the process group with SIGTERM, waits up to grace for
// exit, then force-kills. Safe to call multiple times and after exit.
func (p *process) Terminate(grace time.Duration) {
	p.termOnce.Do(func() {
		select {
		case <-p.waitDone:
			return
		default:
		}
		p.signal(unix.SIGTERM)
		if grace > 0 {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-p.waitDone:
				return
			case <-timer.C:
			}
		}
		p.signal(unix.SIGKILL)
	})
}

func (p *process) signal(sig unix.Signal) {
	if p.cmd.Process == nil {
		return
	}
	pid := p.cmd.Process.Pid
	if pid <= 0 {
		return
	}
	// Negative pid addresses the whole group; fall back to the single
	// process if the group is already gone.
	if err := unix.Kill(-pid, sig); err != nil {
		_ = p.cmd.Process.Signal(sig)
	}
}

var _ Launcher = (*CLI)(nil)

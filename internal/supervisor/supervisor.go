package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pedrox86lopes/MagnetStream/internal/classify"
	"github.com/pedrox86lopes/MagnetStream/internal/config"
	"github.com/pedrox86lopes/MagnetStream/internal/logging"
	"github.com/pedrox86lopes/MagnetStream/internal/scan"
	"github.com/pedrox86lopes/MagnetStream/internal/services"
	"github.com/pedrox86lopes/MagnetStream/internal/services/aria2"
)

const (
	// DefaultPollInterval bounds how long the read loop can go without
	// re-checking the connection deadline. A pure read-line loop is
	// insufficient because a silent process produces no lines.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultStopGrace is how long a terminated process gets to exit before
	// it is force-killed.
	DefaultStopGrace = 5 * time.Second

	// DefaultDrainTimeout bounds the wait for process exit after its output
	// stream has closed.
	DefaultDrainTimeout = 10 * time.Second
)

// Option configures the supervisor.
type Option func(*Supervisor)

// WithLauncher injects a custom tool launcher (primarily for tests).
func WithLauncher(launcher aria2.Launcher) Option {
	return func(s *Supervisor) {
		if launcher != nil {
			s.launcher = launcher
		}
	}
}

// WithClassifier overrides the line classifier.
func WithClassifier(classifier *classify.Classifier) Option {
	return func(s *Supervisor) {
		if classifier != nil {
			s.classifier = classifier
		}
	}
}

// WithPolicy overrides the connection timeout policy.
func WithPolicy(policy TimeoutPolicy) Option {
	return func(s *Supervisor) {
		s.policy = policy
	}
}

// WithScanOptions overrides qualifying-file scan options.
func WithScanOptions(opts scan.Options) Option {
	return func(s *Supervisor) {
		s.scanOpts = opts
	}
}

// WithPollInterval overrides the timeout re-check interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Supervisor) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithStopGrace overrides the termination grace period.
func WithStopGrace(grace time.Duration) Option {
	return func(s *Supervisor) {
		if grace > 0 {
			s.stopGrace = grace
		}
	}
}

// WithDrainTimeout overrides the post-stream exit wait.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) {
		if timeout > 0 {
			s.drainTimeout = timeout
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// Supervisor owns the external acquisition process for the lifetime of each
// run: it spawns aria2c, drives the read loop on its own goroutine, applies
// the classifier and timeout policy, and guarantees the process is
// terminated by the time a run reaches its terminal outcome.
type Supervisor struct {
	launcher     aria2.Launcher
	classifier   *classify.Classifier
	policy       TimeoutPolicy
	logger       *slog.Logger
	scanOpts     scan.Options
	pollInterval time.Duration
	stopGrace    time.Duration
	drainTimeout time.Duration
	now          func() time.Time
}

// New constructs a supervisor with defaults.
func New(logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Supervisor{
		launcher:     aria2.NewCLI(),
		classifier:   classify.Default(),
		policy:       TimeoutPolicy{ConnectDeadline: DefaultConnectDeadline},
		logger:       logger,
		pollInterval: DefaultPollInterval,
		stopGrace:    DefaultStopGrace,
		drainTimeout: DefaultDrainTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig constructs a supervisor wired from application config.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Supervisor {
	base := []Option{
		WithLauncher(aria2.NewCLI(
			aria2.WithBinary(cfg.Aria2.Binary),
			aria2.WithProbeTimeout(time.Duration(cfg.Aria2.ProbeTimeout)*time.Second),
		)),
		WithClassifier(classify.New(cfg.ClassifierRules())),
		WithPolicy(TimeoutPolicy{ConnectDeadline: time.Duration(cfg.Aria2.ConnectTimeout) * time.Second}),
		WithScanOptions(scan.Options{Extensions: cfg.Scan.Extensions, MinFileSize: cfg.Scan.MinFileSizeBytes}),
		WithStopGrace(time.Duration(cfg.Aria2.StopGracePeriod) * time.Second),
	}
	return New(logger, append(base, opts...)...)
}

// Start validates the request, probes the tool, spawns the process, and
// begins the read loop on its own goroutine. It returns immediately with a
// run handle; all further events arrive on the handle's update channel.
// Validation and probe failures are returned as tagged errors before any
// process is spawned.
func (s *Supervisor) Start(ctx context.Context, request Request) (*Run, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if err := s.launcher.Probe(ctx); err != nil {
		return nil, err
	}

	runDir := filepath.Join(request.DownloadDir, request.Subdir())
	proc, err := s.launcher.Launch(ctx, request.Magnet, runDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "supervisor", "launch", "", err)
	}

	run := newRun(uuid.NewString(), request, runDir)
	run.queue.push(progressUpdate("Starting download with aria2c..."))
	run.queue.push(progressUpdate("Connecting to DHT network and trackers..."))

	ctx = services.WithRunID(services.WithComponent(ctx, "supervisor"), run.ID())
	go s.loop(ctx, run, proc)
	return run, nil
}

// loop is the only writer of run state. It exits when the output stream
// closes, a fatal line is classified, the connection deadline passes, or the
// caller cancels; on every path the process is terminated before the
// terminal outcome is delivered.
func (s *Supervisor) loop(ctx context.Context, run *Run, proc aria2.Process) {
	logger := logging.WithContext(ctx, s.logger)

	defer func() {
		// An unsupervised process must never outlive a faulted read loop.
		if r := recover(); r != nil {
			logger.Error("read loop fault", "panic", fmt.Sprint(r))
			proc.Terminate(s.stopGrace)
			run.finish(failureOutcome(FailureExternalError, fmt.Sprintf("internal fault: %v", r)))
		}
	}()

	started := s.now()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var connected, downloadObserved, completed bool
	var abort *Outcome
	lines := proc.Lines()

readLoop:
	for {
		select {
		case <-ctx.Done():
			abort = ptr(failureOutcome(FailureCanceled, "Download cancelled"))
			break readLoop
		case <-run.stopCh:
			abort = ptr(failureOutcome(FailureCanceled, "Download cancelled by user"))
			break readLoop
		case <-ticker.C:
			if s.policy.ShouldAbort(started, s.now(), connected) {
				seconds := int(s.policy.ConnectDeadline / time.Second)
				abort = ptr(failureOutcome(FailureConnectionTimeout,
					fmt.Sprintf("Timeout: could not connect to peers within %d seconds. The torrent might be dead or have no seeders.", seconds)))
				break readLoop
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				break readLoop
			}
			logger.Debug("tool output", "line", line)
			event, matched := s.classifier.Classify(line)
			if !matched {
				continue
			}
			switch event.Kind {
			case classify.KindConnectionEstablished:
				if !connected {
					connected = true
					run.queue.push(progressUpdate("Connected to peers, starting download..."))
					logger.Info("connection established")
				}
				run.queue.push(Update{Event: event})
			case classify.KindPercentUpdate, classify.KindDownloadStarted:
				if !downloadObserved {
					downloadObserved = true
					run.queue.push(progressUpdate("Download in progress..."))
				}
				run.queue.push(Update{Event: event})
			case classify.KindCompleted:
				completed = true
				downloadObserved = true
				run.queue.push(Update{Event: event})
				run.queue.push(progressUpdate("Download completed! Scanning for music files..."))
				break readLoop
			case classify.KindFatalError:
				logger.Warn("fatal line classified", "line", event.Message)
				abort = ptr(failureOutcome(FailureExternalError, fmt.Sprintf("Download error: %s", event.Message)))
				break readLoop
			}
		}
	}

	// Keep draining output so a full pipe cannot block process exit.
	if lines != nil {
		go func() {
			for range lines {
			}
		}()
	}

	if abort != nil {
		proc.Terminate(s.stopGrace)
		s.awaitExit(proc, s.stopGrace+2*time.Second)
		logger.Info("run aborted", "kind", string(abort.Kind), "detail", abort.Detail)
		run.finish(*abort)
		return
	}

	if !s.awaitExit(proc, s.drainTimeout) {
		proc.Terminate(s.stopGrace)
		s.awaitExit(proc, s.stopGrace+2*time.Second)
	}
	exitErr := proc.Err()

	if exitErr != nil && !completed && !downloadObserved {
		detail := fmt.Sprintf("Download failed: %v", exitErr)
		if !connected {
			detail = "Failed to connect to any peers. The torrent might be dead or have no seeders."
		}
		logger.Info("run failed", "detail", detail)
		run.finish(failureOutcome(FailureExternalError, detail))
		return
	}

	run.finish(s.aggregate(run, logger))
}

// aggregate scans the destination directory and produces the terminal
// outcome for a run whose process finished.
func (s *Supervisor) aggregate(run *Run, logger *slog.Logger) Outcome {
	result, err := scan.Audio(run.Dir(), s.scanOpts)
	if err != nil {
		return failureOutcome(FailureExternalError, fmt.Sprintf("scan downloaded files: %v", err))
	}
	switch result.Verdict() {
	case scan.VerdictQualifying:
		logger.Info("run succeeded", "files", len(result.Files))
		return successOutcome(result.Files, fmt.Sprintf("Successfully downloaded %d music file(s)!", len(result.Files)))
	case scan.VerdictNonQualifying:
		return failureOutcome(FailureNoQualifyingOutput,
			fmt.Sprintf("Download completed but no music files found. Downloaded %d file(s) of other types.", result.OtherCount))
	default:
		return failureOutcome(FailureNoQualifyingOutput,
			"No files were downloaded. The torrent might be empty or have no active seeders.")
	}
}

func (s *Supervisor) awaitExit(proc aria2.Process, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-proc.Done():
		return true
	case <-timer.C:
		return false
	}
}

func progressUpdate(message string) Update {
	return Update{Event: classify.Event{Kind: classify.KindProgress, Message: message}}
}

func ptr(outcome Outcome) *Outcome { return &outcome }

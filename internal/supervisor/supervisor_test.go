package supervisor_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pedrox86lopes/MagnetStream/internal/classify"
	"github.com/pedrox86lopes/MagnetStream/internal/logging"
	"github.com/pedrox86lopes/MagnetStream/internal/services"
	"github.com/pedrox86lopes/MagnetStream/internal/services/aria2"
	"github.com/pedrox86lopes/MagnetStream/internal/supervisor"
	"github.com/pedrox86lopes/MagnetStream/internal/testsupport"
)

const testMagnet = "magnet:?xt=urn:btih:0123456789abcdef"

type fakeProcess struct {
	lines     chan string
	done      chan struct{}
	mu        sync.Mutex
	exitErr   error
	signaled  bool
	linesOnce sync.Once
	doneOnce  sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
}

func (p *fakeProcess) Lines() <-chan string  { return p.lines }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *fakeProcess) Terminate(time.Duration) {
	p.mu.Lock()
	p.signaled = true
	p.mu.Unlock()
	p.exit(errors.New("signal: terminated"))
}

func (p *fakeProcess) terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signaled
}

func (p *fakeProcess) exit(err error) {
	p.mu.Lock()
	if p.exitErr == nil {
		p.exitErr = err
	}
	p.mu.Unlock()
	p.linesOnce.Do(func() { close(p.lines) })
	p.doneOnce.Do(func() { close(p.done) })
}

type fakeLauncher struct {
	mu       sync.Mutex
	probeErr error
	proc     *fakeProcess
	script   func(proc *fakeProcess, destDir string)
	probes   int
	launches int
	destDir  string
}

func (l *fakeLauncher) Probe(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.probes++
	return l.probeErr
}

func (l *fakeLauncher) Launch(_ context.Context, _ string, destDir string) (aria2.Process, error) {
	l.mu.Lock()
	l.launches++
	l.destDir = destDir
	proc := l.proc
	script := l.script
	l.mu.Unlock()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	if script != nil {
		go script(proc, destDir)
	}
	return proc, nil
}

func (l *fakeLauncher) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.probes, l.launches
}

func newSupervisor(t *testing.T, launcher *fakeLauncher, opts ...supervisor.Option) *supervisor.Supervisor {
	t.Helper()
	base := []supervisor.Option{
		supervisor.WithLauncher(launcher),
		supervisor.WithPollInterval(10 * time.Millisecond),
		supervisor.WithStopGrace(100 * time.Millisecond),
		supervisor.WithDrainTimeout(2 * time.Second),
	}
	return supervisor.New(logging.NewNop(), append(base, opts...)...)
}

// collect drains a run's update channel and returns the non-terminal events
// plus the terminal outcome.
func collect(t *testing.T, run *supervisor.Run) ([]classify.Event, supervisor.Outcome) {
	t.Helper()
	var events []classify.Event
	var outcome *supervisor.Outcome
	timeout := time.After(10 * time.Second)
	for {
		select {
		case update, ok := <-run.Updates():
			if !ok {
				if outcome == nil {
					t.Fatal("update channel closed without terminal outcome")
				}
				return events, *outcome
			}
			if update.Terminal() {
				if outcome != nil {
					t.Fatal("received more than one terminal update")
				}
				outcome = update.Outcome
				continue
			}
			if outcome != nil {
				t.Fatalf("received event after terminal outcome: %+v", update.Event)
			}
			events = append(events, update.Event)
		case <-timeout:
			t.Fatal("timed out draining updates")
		}
	}
}

func writeQualifyingFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), bytes.Repeat([]byte{0x01}, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestStartRejectsInvalidMagnet(t *testing.T) {
	launcher := &fakeLauncher{proc: newFakeProcess()}
	s := newSupervisor(t, launcher)

	_, err := s.Start(context.Background(), supervisor.Request{Magnet: "http://example.com", DownloadDir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if probes, launches := launcher.counts(); probes != 0 || launches != 0 {
		t.Fatalf("expected no probe or launch, got probes=%d launches=%d", probes, launches)
	}
	if outcome := supervisor.OutcomeFromError(err); outcome.Kind != supervisor.FailureInvalidRequest {
		t.Fatalf("expected invalid request kind, got %s", outcome.Kind)
	}
}

func TestStartSurfacesToolUnavailable(t *testing.T) {
	launcher := &fakeLauncher{
		proc:     newFakeProcess(),
		probeErr: services.Wrap(services.ErrUnavailable, "aria2", "probe", "binary not found", nil),
	}
	s := newSupervisor(t, launcher)

	_, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if _, launches := launcher.counts(); launches != 0 {
		t.Fatalf("expected no process spawned, got %d launches", launches)
	}
	if outcome := supervisor.OutcomeFromError(err); outcome.Kind != supervisor.FailureToolUnavailable {
		t.Fatalf("expected tool unavailable kind, got %s", outcome.Kind)
	}
}

func TestRunSucceedsWithQualifyingFile(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			p.lines <- "Connecting to tracker udp://tracker.example:6969"
			p.lines <- "[#1 10MiB/40MiB(25%) CN:16 DL:2.0MiB]"
			writeQualifyingFile(t, destDir, "track01.flac", 2000)
			p.lines <- "Download complete: track01.flac"
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	events, outcome := collect(t, run)

	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(outcome.Files) != 1 || filepath.Base(outcome.Files[0].Path) != "track01.flac" {
		t.Fatalf("expected the qualifying file, got %+v", outcome.Files)
	}

	var sawConnection, sawPercent, sawCompleted bool
	for _, event := range events {
		switch event.Kind {
		case classify.KindConnectionEstablished:
			sawConnection = true
		case classify.KindPercentUpdate:
			sawPercent = true
			if event.Percent != 25 {
				t.Fatalf("expected 25 percent, got %v", event.Percent)
			}
			if !sawConnection {
				t.Fatal("expected connection before percent update")
			}
		case classify.KindCompleted:
			sawCompleted = true
		}
	}
	if !sawConnection || !sawPercent || !sawCompleted {
		t.Fatalf("missing lifecycle events: connection=%v percent=%v completed=%v", sawConnection, sawPercent, sawCompleted)
	}

	if stored, ok := run.Outcome(); !ok || !stored.Success {
		t.Fatalf("expected stored outcome, got %+v ok=%v", stored, ok)
	}
}

func TestConnectionTimeoutTerminatesProcess(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{proc: proc}
	s := newSupervisor(t, launcher,
		supervisor.WithPolicy(supervisor.TimeoutPolicy{ConnectDeadline: 80 * time.Millisecond}))

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)

	if outcome.Success || outcome.Kind != supervisor.FailureConnectionTimeout {
		t.Fatalf("expected connection timeout, got %+v", outcome)
	}
	if !proc.terminated() {
		t.Fatal("expected process terminated on timeout")
	}
}

func TestConnectionSuppressesTimeout(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			p.lines <- "connected to peer 10.0.0.2"
			// Stay silent well past the deadline, then finish cleanly.
			time.Sleep(250 * time.Millisecond)
			writeQualifyingFile(t, destDir, "track.mp3", 4096)
			p.lines <- "download completed successfully"
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher,
		supervisor.WithPolicy(supervisor.TimeoutPolicy{ConnectDeadline: 80 * time.Millisecond}))

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)
	if !outcome.Success {
		t.Fatalf("expected success after connection established, got %+v", outcome)
	}
}

func TestFatalLineAbortsRun(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, _ string) {
			p.lines <- "connected to 3 peers"
			p.lines <- "ERROR: cannot write to disk: no space left"
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)

	if outcome.Kind != supervisor.FailureExternalError {
		t.Fatalf("expected external error, got %+v", outcome)
	}
	if !bytes.Contains([]byte(outcome.Detail), []byte("no space left")) {
		t.Fatalf("expected offending line in detail, got %q", outcome.Detail)
	}
	if !proc.terminated() {
		t.Fatal("expected process terminated on fatal line")
	}
}

func TestBenignErrorLinesDoNotAbort(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			p.lines <- "WARN: DHT error: bootstrap node unreachable"
			p.lines <- "connected to peer 10.0.0.9"
			writeQualifyingFile(t, destDir, "b.ogg", 3000)
			p.lines <- "download complete"
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)
	if !outcome.Success {
		t.Fatalf("expected benign noise to be ignored, got %+v", outcome)
	}
}

func TestStopCancelsRun(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, _ string) {
			p.lines <- "connected to peer 10.0.0.2"
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		run.Stop()
		run.Stop() // idempotent
	}()

	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureCanceled {
		t.Fatalf("expected canceled outcome, got %+v", outcome)
	}
	if !proc.terminated() {
		t.Fatal("expected process terminated on stop")
	}

	// Stop after the run finished stays a no-op.
	run.Stop()
}

func TestContextCancellationStopsRun(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{proc: proc}
	s := newSupervisor(t, launcher)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := s.Start(ctx, supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	cancel()

	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureCanceled {
		t.Fatalf("expected canceled outcome, got %+v", outcome)
	}
	if !proc.terminated() {
		t.Fatal("expected process terminated on context cancellation")
	}
}

func TestUndersizedOutputReportsNoQualifyingFiles(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			writeQualifyingFile(t, destDir, "stub.flac", 10)
			p.lines <- "download complete"
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureNoQualifyingOutput {
		t.Fatalf("expected no qualifying output, got %+v", outcome)
	}
	if !bytes.Contains([]byte(outcome.Detail), []byte("other types")) {
		t.Fatalf("expected other-types detail, got %q", outcome.Detail)
	}
}

func TestEmptyOutputReportsNothingDownloaded(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, _ string) {
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureNoQualifyingOutput {
		t.Fatalf("expected no qualifying output, got %+v", outcome)
	}
	if !bytes.Contains([]byte(outcome.Detail), []byte("No files were downloaded")) {
		t.Fatalf("expected empty-directory detail, got %q", outcome.Detail)
	}
}

func TestHungProcessTerminatedAfterStreamCloses(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			writeQualifyingFile(t, destDir, "track.flac", 4096)
			p.lines <- "download complete"
			// Output stream ends but the process never exits on its own,
			// as when an orphaned child keeps the pipe's far side alive.
			p.linesOnce.Do(func() { close(p.lines) })
		},
	}
	s := newSupervisor(t, launcher, supervisor.WithDrainTimeout(50*time.Millisecond))

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)

	if !proc.terminated() {
		t.Fatal("expected hung process terminated after drain timeout")
	}
	if !outcome.Success {
		t.Fatalf("expected completed download to aggregate despite forced exit, got %+v", outcome)
	}
}

func TestExitErrorWithoutConnection(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, _ string) {
			p.exit(errors.New("exit status 1"))
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureExternalError {
		t.Fatalf("expected external error, got %+v", outcome)
	}
	if !bytes.Contains([]byte(outcome.Detail), []byte("connect to any peers")) {
		t.Fatalf("expected peer-connection detail, got %q", outcome.Detail)
	}
}

func TestRequestSubdirStable(t *testing.T) {
	a := supervisor.Request{Magnet: testMagnet}
	b := supervisor.Request{Magnet: testMagnet}
	if a.Subdir() != b.Subdir() {
		t.Fatal("expected stable subdirectory derivation")
	}
	other := supervisor.Request{Magnet: "magnet:?xt=urn:btih:fedcba"}
	if a.Subdir() == other.Subdir() {
		t.Fatal("expected distinct subdirectories per magnet")
	}
}

func TestRunDirUnderDownloadRoot(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, _ string) {
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)
	root := t.TempDir()

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: root})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if filepath.Dir(run.Dir()) != root {
		t.Fatalf("expected run dir under %s, got %s", root, run.Dir())
	}
	collect(t, run)
}

func TestWaitReturnsOutcome(t *testing.T) {
	proc := newFakeProcess()
	launcher := &fakeLauncher{
		proc: proc,
		script: func(p *fakeProcess, destDir string) {
			writeQualifyingFile(t, destDir, "a.mp3", 5000)
			p.lines <- "download complete"
			p.exit(nil)
		},
	}
	s := newSupervisor(t, launcher)

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	go func() {
		for range run.Updates() {
		}
	}()

	outcome, err := run.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
}

func TestNewFromConfigUsesConfiguredDeadline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConnectTimeout(1))
	proc := newFakeProcess()
	launcher := &fakeLauncher{proc: proc}
	s := supervisor.NewFromConfig(cfg, logging.NewNop(),
		supervisor.WithLauncher(launcher),
		supervisor.WithPollInterval(20*time.Millisecond))

	run, err := s.Start(context.Background(), supervisor.Request{Magnet: testMagnet, DownloadDir: cfg.Paths.DownloadDir})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	start := time.Now()
	_, outcome := collect(t, run)
	if outcome.Kind != supervisor.FailureConnectionTimeout {
		t.Fatalf("expected timeout from configured deadline, got %+v", outcome)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

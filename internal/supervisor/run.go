package supervisor

import (
	"context"
	"crypto/md5" //nolint:gosec // directory naming only
	"fmt"
	"strings"
	"sync"

	"github.com/pedrox86lopes/MagnetStream/internal/services"
)

// MagnetPrefix is the required URI scheme prefix for acquisition targets.
const MagnetPrefix = "magnet:?"

// Request is the immutable input to one acquisition run.
type Request struct {
	Magnet      string
	DownloadDir string
}

// Validate checks the request before any process is spawned.
func (r Request) Validate() error {
	if !strings.HasPrefix(r.Magnet, MagnetPrefix) {
		return services.Wrap(services.ErrValidation, "supervisor", "start", "invalid magnet link format", nil)
	}
	if strings.TrimSpace(r.DownloadDir) == "" {
		return services.Wrap(services.ErrValidation, "supervisor", "start", "download directory required", nil)
	}
	return nil
}

// Subdir derives the per-magnet destination subdirectory name so repeated
// fetches of the same magnet reuse one directory.
func (r Request) Subdir() string {
	sum := md5.Sum([]byte(r.Magnet)) //nolint:gosec
	return fmt.Sprintf("torrent_%x", sum[:4])
}

// Run is a handle to one supervised acquisition. All state mutation happens
// on the read loop; callers interact only through the update channel, Stop,
// and the accessors below.
type Run struct {
	id      string
	request Request
	dir     string

	queue      *eventQueue
	stopOnce   sync.Once
	stopCh     chan struct{}
	finishOnce sync.Once
	done       chan struct{}

	mu       sync.Mutex
	outcome  Outcome
	finished bool
}

func newRun(id string, request Request, dir string) *Run {
	return &Run{
		id:      id,
		request: request,
		dir:     dir,
		queue:   newEventQueue(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// ID returns the unique run identifier.
func (r *Run) ID() string { return r.id }

// Request returns the originating request.
func (r *Run) Request() Request { return r.request }

// Dir returns the destination directory of this run.
func (r *Run) Dir() string { return r.dir }

// Updates returns the ordered event stream. The terminal outcome is the last
// item delivered; the channel closes after it. Consumers must drain the
// channel.
func (r *Run) Updates() <-chan Update { return r.queue.out }

// Done is closed once the run has reached its terminal outcome.
func (r *Run) Done() <-chan struct{} { return r.done }

// Stop requests cancellation. The read loop observes it on its next
// iteration, terminates the process, and delivers a canceled outcome.
// Calling Stop on a finished run is a no-op.
func (r *Run) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Outcome returns the terminal outcome once the run has ended.
func (r *Run) Outcome() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.finished
}

// Wait blocks until the run ends or ctx is canceled.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		outcome, _ := r.Outcome()
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// finish records the terminal outcome exactly once, delivers it as the last
// channel item, and closes the stream.
func (r *Run) finish(outcome Outcome) {
	r.finishOnce.Do(func() {
		r.mu.Lock()
		r.outcome = outcome
		r.finished = true
		r.mu.Unlock()
		r.queue.push(Update{Outcome: &outcome})
		r.queue.close()
		close(r.done)
	})
}

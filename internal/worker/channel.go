package worker

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

// ErrUnavailable reports that no classifier worker is running and one could
// not serve the request. Callers should treat it as "try again": the next
// Classify call starts a fresh process.
var ErrUnavailable = errors.New("classifier worker unavailable")

// ErrTimeout reports that the worker did not answer a request within the
// configured deadline. The pending entry is removed exactly once; a response
// arriving later is discarded.
var ErrTimeout = errors.New("classification request timed out")

// Result is a single classification: one alphabet label and its confidence.
type Result struct {
	Letter     string
	Confidence float64
}

// Wire format of the classifier worker: one JSON object per line in each
// direction, correlated by id. The worker answers with either a
// letter/confidence pair or an error string.
type workerRequest struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

type workerResponse struct {
	ID         string  `json:"id"`
	Letter     string  `json:"letter"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// process abstracts one live classifier instance so tests can substitute an
// in-memory implementation for the exec-backed one.
type process interface {
	write(line []byte) error
	stdoutScanner() *bufio.Scanner
	stderrScanner() *bufio.Scanner
	closeStdin() error
	terminate() error
	kill() error
	wait() error
	done() <-chan struct{}
}

// Channel multiplexes concurrent Classify calls over a single long-lived
// classifier process. Requests are written as atomic lines; a single reader
// loop distributes response lines to pending callers by correlation id.
type Channel struct {
	log     *slog.Logger
	timeout time.Duration
	spawn   func() (process, error)

	mu   sync.Mutex // guards proc
	proc process

	writeMu sync.Mutex // one request line at a time on the worker's stdin

	pendMu  sync.Mutex
	pending map[string]chan workerResponse

	starts   atomic.Int64
	restarts atomic.Int64
}

func New(cfg config.ClassifierConfig, log *slog.Logger) (*Channel, error) {
	spawn, err := execSpawner(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &Channel{
		log:     log.With(slog.String("component", "worker-channel")),
		timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		spawn:   spawn,
		pending: make(map[string]chan workerResponse),
	}, nil
}

// Classify submits one frame to the worker and blocks until the matching
// response arrives, the deadline passes, or the worker dies. The image is
// sent base64-encoded, matching the worker's wire contract.
func (c *Channel) Classify(ctx context.Context, image []byte) (Result, error) {
	p, err := c.ensure()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	id := uuid.NewString()
	ch := make(chan workerResponse, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()

	line, err := json.Marshal(workerRequest{
		ID:    id,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		c.discard(id)
		return Result{}, fmt.Errorf("encode classify request: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	err = p.write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.discard(id)
		return Result{}, fmt.Errorf("%w: write request: %v", ErrUnavailable, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return Result{}, ErrUnavailable
		}
		if resp.Error != "" {
			return Result{}, fmt.Errorf("classifier: %s", resp.Error)
		}
		return Result{Letter: resp.Letter, Confidence: resp.Confidence}, nil
	case <-timer.C:
		c.discard(id)
		return Result{}, ErrTimeout
	case <-ctx.Done():
		c.discard(id)
		return Result{}, ctx.Err()
	}
}

// Restarts reports how many times the worker exited unexpectedly.
func (c *Channel) Restarts() int64 {
	return c.restarts.Load()
}

// Stop shuts the worker down: stdin is closed, termination is requested, and
// the process is killed if it does not exit within the grace period. Safe to
// call with no worker running, and idempotent.
func (c *Channel) Stop() {
	c.mu.Lock()
	p := c.proc
	c.proc = nil
	c.mu.Unlock()
	if p == nil {
		return
	}

	_ = p.closeStdin()
	_ = p.terminate()

	select {
	case <-p.done():
	case <-time.After(3 * time.Second):
		c.log.Warn("classifier worker did not exit, killing")
		_ = p.kill()
		<-p.done()
	}
	c.log.Info("classifier worker stopped")
}

// ensure returns the live process, starting one if needed.
func (c *Channel) ensure() (process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != nil {
		return c.proc, nil
	}

	p, err := c.spawn()
	if err != nil {
		return nil, err
	}
	c.proc = p
	if c.starts.Add(1) > 1 {
		c.log.Info("classifier worker restarted")
	} else {
		c.log.Info("classifier worker started")
	}

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		c.readLoop(p)
	}()
	go func() {
		defer loops.Done()
		c.drainStderr(p)
	}()
	go func() {
		loops.Wait()
		err := p.wait()
		c.handleExit(p, err)
	}()

	return p, nil
}

// readLoop is the sole consumer of the worker's stdout. Each line is parsed
// as a response envelope; malformed lines are logged and dropped without
// touching unrelated pending requests, and responses with no matching
// pending id are silently discarded.
func (c *Channel) readLoop(p process) {
	scanner := p.stdoutScanner()
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp workerResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			c.log.Warn("discarding unparseable worker output", slog.String("error", err.Error()))
			continue
		}
		if resp.ID == "" {
			c.log.Warn("discarding worker response without id")
			continue
		}
		c.pendMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendMu.Unlock()
		if !ok {
			c.log.Debug("discarding response for unknown id", slog.String("id", resp.ID))
			continue
		}
		ch <- resp
	}
	if err := scanner.Err(); err != nil {
		c.log.Debug("worker stdout closed", slog.String("error", err.Error()))
	}
}

// drainStderr surfaces the worker's diagnostic stream to the host log. It is
// never parsed for protocol content.
func (c *Channel) drainStderr(p process) {
	scanner := p.stderrScanner()
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			c.log.Info("worker: " + line)
		}
	}
}

// handleExit runs once per process, after both stream loops have finished.
// Every still-pending request is failed with ErrUnavailable; a later Classify
// call transparently starts a fresh process.
func (c *Channel) handleExit(p process, err error) {
	c.mu.Lock()
	unexpected := c.proc == p
	if unexpected {
		c.proc = nil
	}
	c.mu.Unlock()

	c.pendMu.Lock()
	swept := make([]chan workerResponse, 0, len(c.pending))
	for id, ch := range c.pending {
		swept = append(swept, ch)
		delete(c.pending, id)
	}
	c.pendMu.Unlock()
	for _, ch := range swept {
		close(ch)
	}

	if unexpected {
		c.restarts.Add(1)
		attrs := []any{slog.Int("failed_requests", len(swept))}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		c.log.Error("classifier worker exited unexpectedly", attrs...)
		return
	}
	c.log.Debug("classifier worker exited", slog.Int("failed_requests", len(swept)))
}

// discard removes a pending entry without resolving it (timeout or
// cancellation). A response arriving afterwards finds no match and is
// dropped by the read loop.
func (c *Channel) discard(id string) {
	c.pendMu.Lock()
	delete(c.pending, id)
	c.pendMu.Unlock()
}

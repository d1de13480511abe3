// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luthersystems/v8bridge/debugger/transport"
	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/luthersystems/v8bridge/telemetry"
	"github.com/sirupsen/logrus"
)

// applyFunc runs on the reader goroutine when the response to a request
// arrives, before the caller waiting on it is released. It is the only
// place a response may mutate session state.
type applyFunc func(*wire.Response)

// pendingRequest is an entry in the correlator's pending table.
type pendingRequest struct {
	seq     int
	command string
	apply   applyFunc
	finish  func(error)
	timer   *time.Timer

	done chan struct{}
	resp *wire.Response
	err  error
}

func (p *pendingRequest) result() (*wire.Response, error) {
	return p.resp, p.err
}

// correlator allocates sequence numbers and matches responses to the
// requests that caused them.
//
// A request stays in the pending table until its response arrives, its
// deadline passes or the session terminates, whichever is first. A caller
// that stops waiting (context cancellation) does not remove the entry;
// the response still drains through handleResponse so its apply hook
// runs, and the deadline guarantees the table cannot grow without bound.
// A request that times out with an apply hook leaves a tombstone behind,
// so a response arriving after the deadline still runs the hook. Other
// late responses are logged and dropped.
type correlator struct {
	tr      transport.Transport
	sink    telemetry.Sink
	log     logrus.FieldLogger
	timeout time.Duration

	// onTransportError is called, outside all locks, when a write fails.
	onTransportError func(error)

	// sendMu keeps wire order equal to sequence order.
	sendMu sync.Mutex
	seq    int

	mu      sync.Mutex
	pending map[int]*pendingRequest
	expired map[int]*pendingRequest
	closed  error
}

// maxExpired bounds the tombstones kept for timed out requests. The
// oldest is discarded first.
const maxExpired = 256

func newCorrelator(tr transport.Transport, sink telemetry.Sink, log logrus.FieldLogger, timeout time.Duration) *correlator {
	return &correlator{
		tr:      tr,
		sink:    sink,
		log:     log,
		timeout: timeout,
		pending: make(map[int]*pendingRequest),
		expired: make(map[int]*pendingRequest),
	}
}

// send writes a request and waits for its response. A response with
// success=false is returned together with a *CommandError.
func (c *correlator) send(ctx context.Context, command string, args interface{}, apply applyFunc) (*wire.Response, error) {
	p, err := c.start(ctx, command, args, apply)
	if err != nil {
		return nil, err
	}
	select {
	case <-p.done:
		return p.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post writes a request without waiting for the response. It is safe to
// call from the reader goroutine.
func (c *correlator) post(command string, args interface{}, apply applyFunc) {
	go func() {
		if _, err := c.start(context.Background(), command, args, apply); err != nil {
			c.log.WithError(err).WithField("command", command).Debug("post failed")
		}
	}()
}

func (c *correlator) start(ctx context.Context, command string, args interface{}, apply applyFunc) (*pendingRequest, error) {
	p, err := c.write(ctx, command, args, apply)
	if err != nil && p != nil {
		// The write itself failed; the stream is unusable.
		c.resolve(p.seq, nil, err)
		if c.onTransportError != nil {
			c.onTransportError(err)
		}
		return nil, err
	}
	return p, err
}

func (c *correlator) write(ctx context.Context, command string, args interface{}, apply applyFunc) (*pendingRequest, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	raw, err := wire.Marshal(&wire.Request{Seq: seq, Command: command, Arguments: args})
	if err != nil {
		return nil, err
	}

	_, finish := c.sink.StartRequest(ctx, command, seq)
	p := &pendingRequest{
		seq:     seq,
		command: command,
		apply:   apply,
		finish:  finish,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		finish(err)
		return nil, err
	}
	c.pending[seq] = p
	// The timer is armed under mu so resolve never sees a nil timer.
	p.timer = time.AfterFunc(c.timeout, func() {
		c.expire(seq, fmt.Errorf("%s (seq %d): %w", command, seq, ErrTimeout))
	})
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"seq": seq, "command": command}).Debug("request")
	if err := c.tr.Send(raw); err != nil {
		return p, err
	}
	return p, nil
}

// handleResponse resolves the pending request resp answers. It runs on the
// reader goroutine.
func (c *correlator) handleResponse(resp *wire.Response) {
	if c.resolve(resp.RequestSeq, resp, nil) {
		return
	}
	log := c.log.WithFields(logrus.Fields{
		"request_seq": resp.RequestSeq,
		"command":     resp.Command,
	})
	c.mu.Lock()
	p, ok := c.expired[resp.RequestSeq]
	delete(c.expired, resp.RequestSeq)
	c.mu.Unlock()
	if !ok {
		log.Warn("dropping unmatched response")
		return
	}
	log.Info("applying response to timed out request")
	p.apply(resp)
}

// resolve completes the pending request seq. It reports false when no
// such request is pending.
func (c *correlator) resolve(seq int, resp *wire.Response, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.complete(p, resp, err)
	return true
}

// expire fails the pending request seq with err. When the request has an
// apply hook a tombstone keeps it for a late response.
func (c *correlator) expire(seq int, err error) {
	c.mu.Lock()
	p, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
		if p.apply != nil {
			if len(c.expired) >= maxExpired {
				oldest := seq
				for s := range c.expired {
					if s < oldest {
						oldest = s
					}
				}
				delete(c.expired, oldest)
			}
			c.expired[seq] = p
		}
	}
	c.mu.Unlock()
	if ok {
		c.complete(p, nil, err)
	}
}

func (c *correlator) complete(p *pendingRequest, resp *wire.Response, err error) {
	p.timer.Stop()
	if resp != nil && p.apply != nil {
		p.apply(resp)
	}
	if err == nil && resp != nil && !resp.Success {
		err = &CommandError{Command: p.command, Message: resp.Message}
	}
	p.resp, p.err = resp, err
	p.finish(err)
	close(p.done)
}

// failAll resolves every pending request with err and rejects new ones.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	if c.closed == nil {
		c.closed = err
	}
	pending := c.pending
	c.pending = make(map[int]*pendingRequest)
	c.expired = make(map[int]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.err = err
		p.finish(err)
		close(p.done)
	}
}

// pendingCount returns the size of the pending table.
func (c *correlator) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// expiredCount returns the number of tombstones awaiting a late response.
func (c *correlator) expiredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expired)
}

// lastSeq returns the most recently allocated sequence number.
func (c *correlator) lastSeq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

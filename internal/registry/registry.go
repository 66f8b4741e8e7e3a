package registry

import (
	"errors"
	"sync"
	"time"

	"bitwise74/verify-api/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultIdleTimeout = 15 * time.Minute
	DefaultGracePeriod = 30 * time.Second
)

var (
	ErrMissingVID = errors.New(ReasonMissingVID)
	ErrInvalidVID = errors.New(ReasonInvalidVID)
)

// Sessions is the slice of the verification session store the registry
// needs. Find returns (nil, nil) when no session exists for the vid
type Sessions interface {
	Find(vid string) (*model.VerificationSession, error)
	Delete(vid string) error
}

type Options struct {
	IdleTimeout time.Duration
	GracePeriod time.Duration
}

// Registry maps vids to the set of live connections waiting on them.
// Deleting the backing session row is part of its contract: delivery,
// idle timeout and the post-disconnect grace period all end the session
type Registry struct {
	mu       sync.Mutex
	conns    map[string][]Conn
	timeouts map[Conn]*time.Timer
	grace    map[string]*time.Timer
	sessions Sessions
	opts     Options
}

func New(sessions Sessions, opts Options) *Registry {
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	return &Registry{
		conns:    make(map[string][]Conn),
		timeouts: make(map[Conn]*time.Timer),
		grace:    make(map[string]*time.Timer),
		sessions: sessions,
		opts:     opts,
	}
}

// Register validates the vid against the session store and adds the
// connection to its set. Validation failures are reported as an ERROR
// event over the connection before it's closed, never as a silent drop
func (r *Registry) Register(vid string, c Conn) error {
	if vid == "" {
		c.Send(Event{Code: CodeError, Message: ReasonMissingVID})
		c.Close()
		return ErrMissingVID
	}

	sess, err := r.sessions.Find(vid)
	if err != nil {
		zap.L().Error("Failed to look up verification session", zap.Error(err))

		c.Send(Event{Code: CodeError, Message: ReasonInvalidVID})
		c.Close()
		return err
	}

	if sess == nil {
		c.Send(Event{Code: CodeError, Message: ReasonInvalidVID})
		c.Close()
		return ErrInvalidVID
	}

	if sess.Expired() {
		if err := r.sessions.Delete(vid); err != nil {
			zap.L().Error("Failed to delete expired verification session", zap.Error(err))
		}

		c.Send(Event{Code: CodeError, Message: ReasonInvalidVID})
		c.Close()
		return ErrInvalidVID
	}

	r.mu.Lock()
	if t, ok := r.grace[vid]; ok {
		t.Stop()
		delete(r.grace, vid)
	}

	r.conns[vid] = append(r.conns[vid], c)
	r.timeouts[c] = time.AfterFunc(r.opts.IdleTimeout, func() {
		r.timeout(vid, c)
	})
	r.mu.Unlock()

	// A failed ack means the client vanished mid-handshake. Back the
	// connection out again; the grace period covers a reconnect
	if err := c.Send(Event{Code: CodeConnected}); err != nil {
		r.mu.Lock()
		r.remove(vid, c)
		r.mu.Unlock()

		c.Close()
		return err
	}

	return nil
}

// Deliver pushes a VERIFIED event to every connection waiting on vid.
// On the first successful delivery the vid entry and the backing session
// are gone, so replays find nothing and report zero. A zero count with no
// error means no connection was live; the caller decides whether to retry
func (r *Registry) Deliver(vid, email string) int {
	r.mu.Lock()
	conns := r.conns[vid]
	if len(conns) == 0 {
		r.mu.Unlock()
		return 0
	}

	delete(r.conns, vid)
	for _, c := range conns {
		if t, ok := r.timeouts[c]; ok {
			t.Stop()
			delete(r.timeouts, c)
		}
	}
	if t, ok := r.grace[vid]; ok {
		t.Stop()
		delete(r.grace, vid)
	}
	r.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Send(Event{Code: CodeVerified, Email: email}); err != nil {
			zap.L().Warn("Failed to push VERIFIED event", zap.String("vid", vid), zap.Error(err))
		} else {
			delivered++
		}

		c.Close()
	}

	// Delivery is the terminal event for the whole attempt, not just the
	// socket. The session row goes with it
	if err := r.sessions.Delete(vid); err != nil {
		zap.L().Error("Failed to delete verification session after delivery", zap.Error(err))
	}

	return delivered
}

// Unregister removes a closed connection from its set. The session row is
// kept for a grace period so a page refresh can reconnect and still be
// notified; only when nothing reconnects in time does the row get deleted
func (r *Registry) Unregister(vid string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(vid, c)
}

// remove drops c from the vid set and schedules the grace-period deletion
// if the set became empty. Caller must hold r.mu
func (r *Registry) remove(vid string, c Conn) bool {
	if t, ok := r.timeouts[c]; ok {
		t.Stop()
		delete(r.timeouts, c)
	}

	conns, ok := r.conns[vid]
	if !ok {
		return false
	}

	found := false
	kept := conns[:0]
	for _, cc := range conns {
		if cc == c {
			found = true
			continue
		}
		kept = append(kept, cc)
	}

	if !found {
		return false
	}

	if len(kept) > 0 {
		r.conns[vid] = kept
		return true
	}

	delete(r.conns, vid)

	if t, ok := r.grace[vid]; ok {
		t.Stop()
	}

	r.grace[vid] = time.AfterFunc(r.opts.GracePeriod, func() {
		r.mu.Lock()
		delete(r.grace, vid)
		empty := len(r.conns[vid]) == 0
		r.mu.Unlock()

		if !empty {
			return
		}

		if err := r.sessions.Delete(vid); err != nil {
			zap.L().Error("Failed to delete verification session after grace period", zap.Error(err))
		}
	})

	return true
}

// timeout fires when a connection sat idle for the full window without a
// verification. The client gets a TIMEOUT event; the session only dies with
// the last connection, siblings that registered later keep waiting
func (r *Registry) timeout(vid string, c Conn) {
	r.mu.Lock()
	removed := r.remove(vid, c)
	last := removed && len(r.conns[vid]) == 0
	if last {
		// A timed out attempt won't be retried over this session, don't
		// keep the row around for the grace period
		if t, ok := r.grace[vid]; ok {
			t.Stop()
			delete(r.grace, vid)
		}
	}
	r.mu.Unlock()

	if !removed {
		return
	}

	c.Send(Event{Code: CodeTimeout})
	c.Close()

	if !last {
		return
	}

	if err := r.sessions.Delete(vid); err != nil {
		zap.L().Error("Failed to delete verification session after timeout", zap.Error(err))
	}
}

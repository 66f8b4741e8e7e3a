package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"bitwise74/verify-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	events  []Event
	closed  bool
	sendErr error
}

func (c *fakeConn) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return c.sendErr
	}

	if c.closed {
		return errors.New("connection closed")
	}

	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) codes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Code)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]model.VerificationSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]model.VerificationSession)}
}

func (s *fakeSessions) add(vid string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[vid] = model.VerificationSession{
		VID:       vid,
		UserID:    "u1",
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func (s *fakeSessions) has(vid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[vid]
	return ok
}

func (s *fakeSessions) Find(vid string) (*model.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[vid]
	if !ok {
		return nil, nil
	}

	return &sess, nil
}

func (s *fakeSessions) Delete(vid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, vid)
	return nil
}

func newTestRegistry(sessions *fakeSessions) *Registry {
	return New(sessions, Options{
		IdleTimeout: 100 * time.Millisecond,
		GracePeriod: 30 * time.Millisecond,
	})
}

func TestRegisterMissingVID(t *testing.T) {
	reg := newTestRegistry(newFakeSessions())
	conn := &fakeConn{}

	err := reg.Register("", conn)

	require.ErrorIs(t, err, ErrMissingVID)
	require.Len(t, conn.events, 1)
	assert.Equal(t, CodeError, conn.events[0].Code)
	assert.Equal(t, ReasonMissingVID, conn.events[0].Message)
	assert.True(t, conn.isClosed())
}

func TestRegisterUnknownVID(t *testing.T) {
	reg := newTestRegistry(newFakeSessions())
	conn := &fakeConn{}

	err := reg.Register("nope", conn)

	require.ErrorIs(t, err, ErrInvalidVID)
	require.Len(t, conn.events, 1)
	assert.Equal(t, ReasonInvalidVID, conn.events[0].Message)
	assert.True(t, conn.isClosed())
}

func TestRegisterExpiredSessionDeletesIt(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(-time.Minute))

	reg := newTestRegistry(sessions)
	conn := &fakeConn{}

	err := reg.Register("v1", conn)

	require.ErrorIs(t, err, ErrInvalidVID)
	assert.False(t, sessions.has("v1"))
	assert.True(t, conn.isClosed())
}

func TestRegisterAcknowledgesConnected(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)
	conn := &fakeConn{}

	require.NoError(t, reg.Register("v1", conn))
	assert.Equal(t, []string{CodeConnected}, conn.codes())
	assert.False(t, conn.isClosed())
}

func TestDeliverWithoutConnections(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)

	assert.Equal(t, 0, reg.Deliver("v1", "a@example.com"))
	assert.True(t, sessions.has("v1"), "session must survive a failed delivery")
}

func TestDeliverFansOutAndDeletesSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)

	c1 := &fakeConn{}
	c2 := &fakeConn{}
	require.NoError(t, reg.Register("v1", c1))
	require.NoError(t, reg.Register("v1", c2))

	assert.Equal(t, 2, reg.Deliver("v1", "a@example.com"))
	assert.False(t, sessions.has("v1"))

	for _, conn := range []*fakeConn{c1, c2} {
		codes := conn.codes()
		require.Len(t, codes, 2)
		assert.Equal(t, CodeVerified, codes[1])
		assert.True(t, conn.isClosed())
	}

	assert.Equal(t, "a@example.com", c1.events[1].Email)

	// Terminal state: a replay finds nothing to deliver to
	assert.Equal(t, 0, reg.Deliver("v1", "a@example.com"))
}

func TestConnectionTimesOut(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)
	conn := &fakeConn{}

	require.NoError(t, reg.Register("v1", conn))

	assert.Eventually(t, func() bool {
		codes := conn.codes()
		return len(codes) == 2 && codes[1] == CodeTimeout
	}, time.Second, 5*time.Millisecond)

	assert.True(t, conn.isClosed())
	assert.False(t, sessions.has("v1"))

	assert.Equal(t, 0, reg.Deliver("v1", "a@example.com"))
}

func TestUnregisterKeepsSessionForGracePeriod(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)
	conn := &fakeConn{}

	require.NoError(t, reg.Register("v1", conn))
	reg.Unregister("v1", conn)

	assert.True(t, sessions.has("v1"), "session must survive the grace period")

	assert.Eventually(t, func() bool {
		return !sessions.has("v1")
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectWithinGracePeriod(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)

	first := &fakeConn{}
	require.NoError(t, reg.Register("v1", first))
	reg.Unregister("v1", first)

	second := &fakeConn{}
	require.NoError(t, reg.Register("v1", second))

	// Past the grace period the session must still be alive because the
	// reconnect canceled the deletion
	time.Sleep(60 * time.Millisecond)
	assert.True(t, sessions.has("v1"))

	assert.Equal(t, 1, reg.Deliver("v1", "a@example.com"))

	codes := second.codes()
	require.Len(t, codes, 2)
	assert.Equal(t, CodeVerified, codes[1])
	assert.False(t, sessions.has("v1"))
}

func TestRegisterBacksOutOnFailedAck(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)
	conn := &fakeConn{sendErr: errors.New("client gone")}

	require.Error(t, reg.Register("v1", conn))
	assert.True(t, conn.isClosed())

	// The dead connection must not be left in the set
	assert.Equal(t, 0, reg.Deliver("v1", "a@example.com"))

	// The session outlives the failed handshake until the grace period ends
	assert.Eventually(t, func() bool {
		return !sessions.has("v1")
	}, time.Second, 5*time.Millisecond)
}

func TestTimeoutWithSiblingKeepsSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)

	c1 := &fakeConn{}
	c2 := &fakeConn{}
	require.NoError(t, reg.Register("v1", c1))
	require.NoError(t, reg.Register("v1", c2))

	reg.timeout("v1", c1)

	codes := c1.codes()
	require.Len(t, codes, 2)
	assert.Equal(t, CodeTimeout, codes[1])
	assert.True(t, c1.isClosed())

	// The sibling is still waiting, the session must survive
	assert.True(t, sessions.has("v1"))
	assert.False(t, c2.isClosed())

	assert.Equal(t, 1, reg.Deliver("v1", "a@example.com"))
	assert.False(t, sessions.has("v1"))
}

func TestUnregisterOneOfManyKeepsOthers(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("v1", time.Now().Add(time.Minute))

	reg := newTestRegistry(sessions)

	c1 := &fakeConn{}
	c2 := &fakeConn{}
	require.NoError(t, reg.Register("v1", c1))
	require.NoError(t, reg.Register("v1", c2))

	reg.Unregister("v1", c1)

	assert.Equal(t, 1, reg.Deliver("v1", "a@example.com"))
	assert.Equal(t, []string{CodeConnected}, c1.codes())
}

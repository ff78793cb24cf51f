package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(r *Registry, h InboundHandler, opts SessionOptions) *Session {
	return NewSession("s1", 5, Identity{UserID: 10, Username: "ana"}, r, h, zap.NewNop(), opts)
}

func TestSessionOpenJoinsGroup(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})

	assert.Equal(t, StateConnecting, s.State())
	require.NoError(t, s.Open())

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "chat_5", s.GroupKey())
	assert.Equal(t, 1, r.Count("chat_5"))
	assert.False(t, s.JoinedAt().IsZero())
}

func TestSessionOpenFailsWhenRegistryClosed(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Shutdown()
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})

	err := s.Open()

	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, r.Count("chat_5"))
}

func TestSessionCloseIsIdempotentAndLeaves(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})
	require.NoError(t, s.Open())

	s.Close()
	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, r.Count("chat_5"))
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSessionCloseBeforeOpen(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})

	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Open(), ErrSessionClosed)
	assert.Equal(t, 0, r.Count("chat_5"))
}

func TestSessionDispatchRequiresActive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	h := &recordingHandler{}
	s := newTestSession(r, h, SessionOptions{})

	assert.ErrorIs(t, s.Dispatch(context.Background(), []byte(`{}`)), ErrSessionClosed)

	require.NoError(t, s.Open())
	require.NoError(t, s.Dispatch(context.Background(), []byte(`{"message":"x"}`)))

	s.Close()
	assert.ErrorIs(t, s.Dispatch(context.Background(), []byte(`{"message":"y"}`)), ErrSessionClosed)
	assert.Equal(t, []string{`{"message":"x"}`}, h.seen())
}

func TestSessionDeliver(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{SendBuffer: 1})

	require.NoError(t, s.Deliver([]byte("one")))
	assert.ErrorIs(t, s.Deliver([]byte("two")), ErrDelivery)

	s.Close()
	assert.ErrorIs(t, s.Deliver([]byte("three")), ErrSessionClosed)
}

func TestSessionServeProcessesFramesAndWrites(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	h := &recordingHandler{}
	s := newTestSession(r, h, SessionOptions{})
	require.NoError(t, s.Open())

	conn := newFakeConn()
	served := make(chan struct{})
	go func() {
		s.Serve(context.Background(), conn)
		close(served)
	}()

	conn.in <- []byte(`{"type":"typing","is_typing":true}`)
	require.Eventually(t, func() bool { return len(h.seen()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Deliver([]byte(`{"type":"message"}`)))
	require.Eventually(t, func() bool { return len(conn.writes()) == 1 }, time.Second, 5*time.Millisecond)

	close(conn.in)
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after disconnect")
	}

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, r.Count("chat_5"))
	assert.True(t, conn.isClosed())
	assert.Contains(t, conn.controls, websocket.CloseMessage)
}

func TestSessionServeClosesOnWriteFailure(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})
	require.NoError(t, s.Open())

	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	go s.Serve(context.Background(), conn)

	require.NoError(t, s.Deliver([]byte("x")))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not closed after write failure")
	}
	assert.Equal(t, 0, r.Count("chat_5"))
}

func TestSessionServeStopsOnContextCancel(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})
	require.NoError(t, s.Open())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		s.Serve(ctx, newFakeConn())
		close(served)
	}()
	cancel()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, StateClosed, s.State())
}

func TestSessionServeAfterCloseClosesConn(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := newTestSession(r, &recordingHandler{}, SessionOptions{})
	s.Close()

	conn := newFakeConn()
	s.Serve(context.Background(), conn)

	assert.True(t, conn.isClosed())
}

func TestSessionOptionsDefaults(t *testing.T) {
	opts := SessionOptions{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()

	assert.Equal(t, 9*time.Second, opts.PingPeriod)
	assert.Equal(t, 256, opts.SendBuffer)
	assert.Equal(t, 10*time.Second, opts.WriteWait)
}

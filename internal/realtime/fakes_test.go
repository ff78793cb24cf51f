package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"social-chat/internal/domain"
)

type fakeMember struct {
	id  string
	err error

	mu       sync.Mutex
	payloads [][]byte
	closed   int
}

func newFakeMember(id string) *fakeMember {
	return &fakeMember{id: id}
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *fakeMember) Close() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

func (m *fakeMember) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.payloads...)
}

func (m *fakeMember) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeRelay struct {
	err error

	mu        sync.Mutex
	published []string
}

func (r *fakeRelay) Publish(_ context.Context, groupKey string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, groupKey+"|"+string(payload))
	return nil
}

type fakeStore struct {
	err   error
	delay time.Duration

	mu       sync.Mutex
	nextID   int64
	messages []domain.ChatMessage
}

func (s *fakeStore) Create(ctx context.Context, message domain.ChatMessage) (int64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	message.ID = s.nextID
	s.messages = append(s.messages, message)
	return message.ID, nil
}

func (s *fakeStore) saved() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

var errFakeConnClosed = errors.New("fake conn closed")

// fakeConn entrega los frames de in a ReadMessage y registra lo escrito.
type fakeConn struct {
	in chan []byte

	mu       sync.Mutex
	written  [][]byte
	controls []int
	closed   bool
	writeErr error
	done     chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return 0, nil, errFakeConnClosed
		}
		return 1, data, nil
	case <-c.done:
		return 0, nil, errFakeConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recordingHandler struct {
	mu     sync.Mutex
	frames []string
}

func (h *recordingHandler) HandleInbound(_ context.Context, _ *Session, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, string(data))
	return nil
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...)
}

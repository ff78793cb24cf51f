package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionState es el estado del ciclo de vida de una sesion.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Identity es la identidad ya autenticada ligada a una sesion.
type Identity struct {
	UserID   int64
	Username string
}

// Conn es el subconjunto de *websocket.Conn que usa una sesion.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// InboundHandler procesa un frame recibido por una sesion activa.
type InboundHandler interface {
	HandleInbound(ctx context.Context, s *Session, data []byte) error
}

type SessionOptions struct {
	SendBuffer     int
	InboundBuffer  int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	HandleTimeout  time.Duration
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		SendBuffer:     256,
		InboundBuffer:  64,
		MaxMessageSize: 64 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		HandleTimeout:  5 * time.Second,
	}
}

func (o SessionOptions) withDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = d.InboundBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.HandleTimeout <= 0 {
		o.HandleTimeout = d.HandleTimeout
	}
	return o
}

// Session liga una conexion, una sala y una identidad durante toda su vida.
// Ciclo: Connecting -> Active -> Closed. Close es idempotente y siempre hace Leave.
type Session struct {
	id       string
	roomID   int64
	groupKey string
	identity Identity
	joinedAt time.Time

	registry *Registry
	handler  InboundHandler
	logger   *zap.Logger
	opts     SessionOptions

	state   atomic.Int32
	send    chan []byte
	inbound chan []byte
	done    chan struct{}

	closeOnce sync.Once
	connMu    sync.Mutex
	conn      Conn
	connDone  chan struct{}
}

func NewSession(id string, roomID int64, identity Identity, registry *Registry, handler InboundHandler, logger *zap.Logger, opts SessionOptions) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	s := &Session{
		id:       id,
		roomID:   roomID,
		groupKey: GroupKey(roomID),
		identity: identity,
		registry: registry,
		handler:  handler,
		opts:     opts,
		send:     make(chan []byte, opts.SendBuffer),
		inbound:  make(chan []byte, opts.InboundBuffer),
		done:     make(chan struct{}),
		connDone: make(chan struct{}),
	}
	s.logger = logger.With(
		zap.String("session_id", id),
		zap.Int64("room_id", roomID),
		zap.Int64("user_id", identity.UserID),
	)
	return s
}

func (s *Session) ID() string            { return s.id }
func (s *Session) RoomID() int64         { return s.roomID }
func (s *Session) GroupKey() string      { return s.groupKey }
func (s *Session) Identity() Identity    { return s.identity }
func (s *Session) JoinedAt() time.Time   { return s.joinedAt }
func (s *Session) State() SessionState   { return SessionState(s.state.Load()) }
func (s *Session) Done() <-chan struct{} { return s.done }

// Open registra la sesion en su grupo y la pasa a Active. Si el registro falla
// la sesion queda cerrada y la conexion debe rechazarse.
func (s *Session) Open() error {
	if s.State() != StateConnecting {
		return ErrSessionClosed
	}
	s.joinedAt = time.Now().UTC()
	if err := s.registry.Join(s.groupKey, s); err != nil {
		s.Close()
		return err
	}
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		s.Close()
		return ErrSessionClosed
	}
	s.logger.Info("session opened")
	return nil
}

// Serve atiende la conexion hasta que se cierre. Bloquea en la goroutine del llamador
// y cierra la sesion en cualquier camino de salida.
func (s *Session) Serve(ctx context.Context, conn Conn) {
	defer func() {
		s.Close()
		<-s.connDone
	}()
	if !s.attach(conn) {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump(conn)
	go s.processLoop(ctx)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	s.readPump(conn)
}

// Deliver encola un payload sin bloquear. El orden de encolado es el orden de escritura.
func (s *Session) Deliver(payload []byte) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", ErrDelivery)
	}
}

// Dispatch entrega un frame al handler. Solo una sesion activa acepta eventos.
func (s *Session) Dispatch(ctx context.Context, data []byte) error {
	if s.State() != StateActive {
		return ErrSessionClosed
	}
	return s.handler.HandleInbound(ctx, s, data)
}

// Close pasa la sesion a Closed y la quita del registro. Se puede llamar
// desde cualquier goroutine y mas de una vez. No bloquea: el frame de cierre
// y el cierre de la conexion corren en otra goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		prev := SessionState(s.state.Swap(int32(StateClosed)))
		s.registry.Leave(s.groupKey, s)
		close(s.done)

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn != nil {
			go s.closeConn(conn)
		} else {
			close(s.connDone)
		}
		s.logger.Info("session closed", zap.Stringer("previous_state", prev))
	})
}

func (s *Session) closeConn(conn Conn) {
	defer close(s.connDone)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteWait))
	_ = conn.Close()
}

func (s *Session) attach(conn Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.State() == StateClosed {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) readPump(conn Conn) {
	conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("read error", zap.Error(err))
			}
			return
		}
		if s.State() == StateClosed {
			return
		}
		select {
		case s.inbound <- data:
		default:
			s.logger.Warn("inbound queue full, dropping event")
		}
	}
}

// processLoop maneja los eventos de a uno. Un evento en curso termina aunque la
// conexion se cierre; los que quedan en cola se descartan.
func (s *Session) processLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.inbound:
			if s.State() != StateActive {
				return
			}
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.HandleTimeout)
			err := s.Dispatch(hctx, data)
			cancel()
			s.logInboundError(err)
		}
	}
}

func (s *Session) logInboundError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrProtocolDecode):
		s.logger.Warn("dropping malformed event", zap.Error(err))
	case errors.Is(err, ErrPersistence):
		s.logger.Error("message not persisted, dropping event", zap.Error(err))
	case errors.Is(err, ErrSessionClosed):
	default:
		s.logger.Error("inbound event failed", zap.Error(err))
	}
}

func (s *Session) writePump(conn Conn) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Warn("write failed, closing session", zap.Error(fmt.Errorf("%w: %v", ErrDelivery, err)))
				s.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				s.logger.Warn("ping failed, closing session", zap.Error(err))
				s.Close()
				return
			}
		}
	}
}

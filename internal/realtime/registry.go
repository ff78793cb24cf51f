package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const relayPublishTimeout = 2 * time.Second

// Member es una conexion que puede unirse a un grupo de difusion.
type Member interface {
	ID() string
	Deliver(payload []byte) error
	Close()
}

// Relay reenvia eventos ya serializados a todas las instancias del servicio.
type Relay interface {
	Publish(ctx context.Context, groupKey string, payload []byte) error
}

// GroupKey deriva la clave de difusion de una sala.
func GroupKey(roomID int64) string {
	return "chat_" + strconv.FormatInt(roomID, 10)
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

// Registry mantiene que conexiones vivas pertenecen a cada grupo de sala.
// Es seguro para uso concurrente.
type Registry struct {
	logger *zap.Logger
	relay  Relay

	mu     sync.RWMutex
	groups map[string]map[string]Member
	closed bool

	orderMu sync.Mutex
	order   map[string]*orderLock
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		groups: make(map[string]map[string]Member),
		order:  make(map[string]*orderLock),
	}
}

// WithRelay hace que Broadcast publique a traves del relay en vez de entregar localmente.
// La entrega local la realiza el suscriptor del relay via DeliverLocal.
func (r *Registry) WithRelay(relay Relay) *Registry {
	r.relay = relay
	return r
}

func (r *Registry) Join(groupKey string, m Member) error {
	if groupKey == "" {
		return ErrInvalidGroup
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	members, ok := r.groups[groupKey]
	if !ok {
		members = make(map[string]Member)
		r.groups[groupKey] = members
	}
	displaced, ok := members[m.ID()]
	if ok && displaced == m {
		displaced = nil
	}
	members[m.ID()] = m
	count := len(members)
	r.mu.Unlock()

	// un id repetido reemplaza al miembro anterior, que ya no recibiria entregas
	if displaced != nil {
		r.logger.Warn("member id reused, closing previous member", zap.String("group", groupKey), zap.String("member_id", m.ID()))
		displaced.Close()
	}
	r.logger.Debug("member joined", zap.String("group", groupKey), zap.String("member_id", m.ID()), zap.Int("members", count))
	return nil
}

// Leave es idempotente: quitar un miembro ausente no es un error.
func (r *Registry) Leave(groupKey string, m Member) {
	r.mu.Lock()
	members, ok := r.groups[groupKey]
	if !ok {
		r.mu.Unlock()
		return
	}
	if current, ok := members[m.ID()]; !ok || current != m {
		r.mu.Unlock()
		return
	}
	delete(members, m.ID())
	count := len(members)
	if count == 0 {
		delete(r.groups, groupKey)
	}
	r.mu.Unlock()

	r.logger.Debug("member left", zap.String("group", groupKey), zap.String("member_id", m.ID()), zap.Int("members", count))
}

// Members devuelve una copia de los miembros actuales del grupo.
func (r *Registry) Members(groupKey string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.groups[groupKey])
}

func (r *Registry) Count(groupKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[groupKey])
}

// Stats devuelve cantidad de grupos activos y de miembros conectados.
func (r *Registry) Stats() (groups, members int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups = len(r.groups)
	for _, g := range r.groups {
		members += len(g)
	}
	return groups, members
}

// Broadcast serializa el evento una vez y lo entrega a cada miembro del grupo.
// Los fallos de entrega nunca se propagan al llamador.
func (r *Registry) Broadcast(groupKey string, event OutboundEvent) {
	payload, err := EncodeOutbound(event)
	if err != nil {
		r.logger.Error("encode outbound event failed", zap.String("group", groupKey), zap.Error(err))
		return
	}

	if r.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
		defer cancel()
		if err := r.relay.Publish(ctx, groupKey, payload); err != nil {
			r.logger.Error("relay publish failed, event dropped", zap.String("group", groupKey), zap.Error(err))
		}
		return
	}

	r.DeliverLocal(groupKey, payload)
}

// DeliverLocal entrega un payload ya serializado a los miembros locales.
// Itera sobre una copia tomada al inicio, asi que un Leave concurrente no bloquea ni duplica.
func (r *Registry) DeliverLocal(groupKey string, payload []byte) {
	for _, m := range r.Members(groupKey) {
		if err := m.Deliver(payload); err != nil {
			if !errors.Is(err, ErrSessionClosed) {
				r.logger.Warn("delivery failed, closing member",
					zap.String("group", groupKey),
					zap.String("member_id", m.ID()),
					zap.Error(err),
				)
			}
			m.Close()
		}
	}
}

// Publish ejecuta produce bajo el lock de orden del grupo y difunde el evento
// resultante solo si produce no fallo. Dentro de una sala, el orden visible
// coincide con el orden en que produce termino.
func (r *Registry) Publish(ctx context.Context, groupKey string, produce func(ctx context.Context) (OutboundEvent, error)) error {
	lock := r.acquire(groupKey)
	defer r.release(groupKey, lock)

	event, err := produce(ctx)
	if err != nil {
		return err
	}
	r.Broadcast(groupKey, event)
	return nil
}

// Shutdown rechaza nuevos Join y cierra todos los miembros conectados.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	var all []Member
	for _, g := range r.groups {
		all = append(all, lo.Values(g)...)
	}
	r.mu.Unlock()

	for _, m := range all {
		m.Close()
	}
	r.logger.Info("registry shut down", zap.Int("closed_members", len(all)))
}

func (r *Registry) acquire(groupKey string) *orderLock {
	r.orderMu.Lock()
	l, ok := r.order[groupKey]
	if !ok {
		l = &orderLock{}
		r.order[groupKey] = l
	}
	l.refs++
	r.orderMu.Unlock()

	l.mu.Lock()
	return l
}

func (r *Registry) release(groupKey string, l *orderLock) {
	l.mu.Unlock()

	r.orderMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.order, groupKey)
	}
	r.orderMu.Unlock()
}

package realtime

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRelayPrefix = "rt:"

type redisPubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// LocalSink recibe los payloads que llegan por el relay.
type LocalSink interface {
	DeliverLocal(groupKey string, payload []byte)
}

// RedisRelay difunde eventos entre instancias usando pub/sub de Redis.
// No hay persistencia: una instancia sin suscripcion activa pierde los eventos.
type RedisRelay struct {
	client redisPubSubClient
	prefix string
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, logger *zap.Logger) *RedisRelay {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client: client,
		prefix: defaultRelayPrefix,
		logger: logger,
	}
}

func (r *RedisRelay) Publish(ctx context.Context, groupKey string, payload []byte) error {
	return r.client.Publish(ctx, r.channel(groupKey), payload).Err()
}

// Start se suscribe al patron de canales y espera la confirmacion antes de volver,
// de modo que ningun Publish posterior se pierda en esta instancia. Los mensajes
// se entregan a sink desde una unica goroutine, preservando el orden de llegada.
func (r *RedisRelay) Start(ctx context.Context, sink LocalSink) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					r.logger.Warn("relay subscription closed")
					return
				}
				groupKey, ok := r.groupKey(msg.Channel)
				if !ok {
					continue
				}
				sink.DeliverLocal(groupKey, []byte(msg.Payload))
			}
		}
	}()

	r.logger.Info("relay subscribed", zap.String("pattern", r.prefix+"*"))
	return nil
}

func (r *RedisRelay) channel(groupKey string) string {
	return r.prefix + groupKey
}

func (r *RedisRelay) groupKey(channel string) (string, bool) {
	if !strings.HasPrefix(channel, r.prefix) {
		return "", false
	}
	key := strings.TrimPrefix(channel, r.prefix)
	return key, key != ""
}

package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implementa Store sobre redis compartido entre procesos.
// La propagación entre instancias tiene una ventana de staleness acotada
// (latencia de red), aceptable mientras sea mucho menor al TTL del access
// token; dentro del proceso las lecturas ven las escrituras propias.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un Store distribuido. prefix separa el keyspace ("rvk" default).
func NewRedis(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "rvk"
	}
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

func (s *redisStore) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	// El TTL de redis evita crecimiento sin límite: la entrada cae sola
	// cuando el token habría vencido igual.
	return s.client.Set(ctx, s.key(tokenID), "1", ttl).Err()
}

func (s *redisStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

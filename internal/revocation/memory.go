package revocation

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store in-process sobre go-cache, que ya trae
// expiración por entrada y un janitor de limpieza periódica.
// Lecturas linealizables respecto de escrituras del mismo proceso.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory crea un Store en memoria. Para single-node y tests; en despliegues
// multi-proceso usar NewRedis para que el logout propague entre instancias.
func NewMemory() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *memoryStore) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // ya venció naturalmente
	}
	s.c.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (s *memoryStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	_, ok := s.c.Get(tokenID)
	return ok, nil
}

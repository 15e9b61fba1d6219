// Package revocation implementa la blacklist de access tokens (por jti).
// Es un set concurrente read-heavy: cada request autenticado lo consulta,
// solo logout/administración escriben. Las entradas viven lo que viviría el
// token, así el set no crece sin límite.
package revocation

import (
	"context"
	"time"
)

// Store responde "¿está revocado este access token?" en O(1).
// Siempre se inyecta como interfaz: nunca un global mutable de paquete.
type Store interface {
	// Add revoca un tokenID hasta su expiración natural. Si expiresAt ya
	// pasó, no hay nada que revocar y la llamada es un no-op.
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error

	// Contains indica si el tokenID está revocado.
	Contains(ctx context.Context, tokenID string) (bool, error)
}

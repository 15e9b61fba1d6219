package repository

import (
	"context"
	"time"
)

// RefreshToken representa un eslabón de la cadena de rotación de una sesión.
// Estado: Active (RevokedAt nil) → Rotated (RevokedAt + ReplacedByID) o
// Revoked (RevokedAt sin sucesor). Ambos estados finales son terminales.
type RefreshToken struct {
	ID            string
	UserID        string
	TenantID      string // vacío para el rol privilegiado
	SessionID     string // identifica la cadena completa
	Role          string
	TokenHash     string // sha256 hex del valor opaco; el valor crudo jamás se persiste
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason string
	ReplacedByID  *string
	IssuingIP     string
}

// Active indica si el eslabón sigue siendo la punta usable de la cadena.
// El vencimiento es inclusivo: el token muere exactamente en ExpiresAt.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	ID        string
	UserID    string
	TenantID  string
	SessionID string
	Role      string
	TokenHash string
	IssuingIP string
	TTL       time.Duration
}

// RefreshChainRepository persiste cadenas de rotación. Las mutaciones se
// serializan por cadena, no globalmente.
type RefreshChainRepository interface {
	// Create inserta la raíz de una cadena nueva (login).
	Create(ctx context.Context, input CreateRefreshTokenInput) error

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate marca currentID como rotado (revoked_at + replaced_by) e inserta
	// el sucesor, como un único update condicional atómico: si currentID ya no
	// está activo retorna (false, nil) sin insertar nada. Dos rotaciones
	// concurrentes del mismo token producen exactamente un true.
	Rotate(ctx context.Context, currentID string, successor CreateRefreshTokenInput) (bool, error)

	// Revoke revoca un token puntual por ID con el motivo dado.
	Revoke(ctx context.Context, tokenID, reason string) error

	// RevokeChain revoca todos los eslabones aún activos de una sesión.
	// Retorna la cantidad revocada.
	RevokeChain(ctx context.Context, sessionID, reason string) (int, error)

	// RevokeAllByUser revoca todas las cadenas activas de un usuario
	// (logout-all / acción administrativa). Retorna la cantidad revocada.
	RevokeAllByUser(ctx context.Context, userID, reason string) (int, error)
}

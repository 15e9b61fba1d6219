package middlewares

import (
	"context"
	"time"

	"github.com/aulalink/aulalink/internal/authz"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxPrincipalKey guarda el Principal verificado por el gate
	ctxPrincipalKey ctxKey = "principal"
	// ctxAccessMetaKey guarda jti/exp del access token (para logout)
	ctxAccessMetaKey ctxKey = "access_meta"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// AccessMeta conserva los datos del access token que logout necesita para
// blacklistear el jti por lo que le queda de vida.
type AccessMeta struct {
	TokenID   string
	ExpiresAt time.Time
}

// =================================================================================
// CONTEXT SETTERS (Internos, usados por middlewares)
// =================================================================================

// WithPrincipal inyecta el principal verificado en el contexto.
// SOLO el gate debe llamar esto: es la única fuente legítima de principals.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// WithAccessMeta inyecta los metadatos del access token en el contexto.
func WithAccessMeta(ctx context.Context, m AccessMeta) context.Context {
	return context.WithValue(ctx, ctxAccessMetaKey, m)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS (Públicos, usados por handlers/services)
// =================================================================================

// GetPrincipal obtiene el principal verificado del contexto.
// ok=false significa ruta exenta o gate no aplicado: el handler debe tratar
// al request como anónimo, nunca inventar un principal.
func GetPrincipal(ctx context.Context) (authz.Principal, bool) {
	if v := ctx.Value(ctxPrincipalKey); v != nil {
		if p, ok := v.(authz.Principal); ok {
			return p, true
		}
	}
	return authz.Principal{}, false
}

// GetAccessMeta obtiene los metadatos del access token del contexto.
func GetAccessMeta(ctx context.Context) (AccessMeta, bool) {
	if v := ctx.Value(ctxAccessMetaKey); v != nil {
		if m, ok := v.(AccessMeta); ok {
			return m, true
		}
	}
	return AccessMeta{}, false
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

package middlewares

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/httpx/errors"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/token"
)

// GateConfig configura el gate de aislamiento.
type GateConfig struct {
	Tokens *token.Service
	Audit  *audit.Recorder

	// ExemptPaths es la lista EXPLÍCITA de paths exactos que pasan sin
	// autenticación (login, refresh, password reset, health, metrics).
	// No hay patrones ni prefijos: un path nuevo es autenticado por defecto.
	ExemptPaths []string
}

// WithTenantGate es el gate de aislamiento: corre sobre TODA ruta no exenta,
// verifica el access token y deriva el contexto de tenant EXCLUSIVAMENTE del
// token. Nada que venga del cliente (body, query, headers) puede influir en
// qué tenant se adopta.
//
// Fail closed: cualquier duda termina en rechazo, nunca en un pase.
func WithTenantGate(cfg GateConfig) Middleware {
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				errors.WriteError(w, errors.ErrUnauthenticated)
				return
			}

			p, err := cfg.Tokens.VerifyAccessToken(r.Context(), raw)
			if err != nil {
				if stderrors.Is(err, token.ErrRevocationUnavailable) {
					// Infra caída, no un token malo: 503 para que el
					// cliente reintente, sin abrir la puerta.
					logger.From(r.Context()).Error("revocation store unavailable",
						logger.Component("gate"),
						logger.Err(err),
					)
					errors.WriteError(w, errors.ErrServiceUnavailable)
					return
				}
				// Expirado, firma inválida, malformado o revocado: todos
				// indistinguibles para el cliente.
				errors.WriteError(w, errors.ErrUnauthenticated)
				return
			}

			if !p.IsPrivileged() && p.TenantID == "" {
				// Token firmado por nosotros sin tenant: integridad de datos
				// rota. Jamás se asigna un tenant por defecto.
				logger.From(r.Context()).Error("authenticated principal without tenant",
					logger.Component("gate"),
					logger.UserID(p.UserID),
					logger.Role(p.Role),
				)
				if aerr := cfg.Audit.Record(r.Context(), audit.Entry{
					ActorUserID: p.UserID,
					Action:      audit.ActionMissingTenant,
					Severity:    audit.SeverityWarning,
					Detail:      "token without tenant claim for non-privileged role " + p.Role,
				}); aerr != nil {
					errors.WriteError(w, errors.ErrServiceUnavailable)
					return
				}
				errors.WriteError(w, errors.ErrForbidden)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			if claims, cerr := cfg.Tokens.ParseAccessClaims(raw); cerr == nil {
				ctx = WithAccessMeta(ctx, AccessMeta{TokenID: claims.TokenID, ExpiresAt: claims.ExpiresAt})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extrae el token del header Authorization.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Package token implementa el servicio de emisión y verificación de tokens:
// access tokens firmados (JWT EdDSA) y refresh tokens opacos con cadena de
// rotación y detección de reuso.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/directory"
	"github.com/aulalink/aulalink/internal/domain/repository"
	jwtx "github.com/aulalink/aulalink/internal/jwt"
	"github.com/aulalink/aulalink/internal/metrics"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/revocation"
	tokens "github.com/aulalink/aulalink/internal/security/token"
)

// Errores del servicio. Los de autenticación se colapsan en 401 en el borde.
var (
	// ErrTokenRevoked: el jti figura en la blacklist (logout previo).
	ErrTokenRevoked = errors.New("token: access token revoked")

	// ErrInvalidRefreshToken: el refresh no existe o ya venció. Respuesta
	// normal, no señal de ataque.
	ErrInvalidRefreshToken = errors.New("token: invalid or expired refresh token")

	// ErrTokenReuseDetected: se presentó un refresh ya rotado/revocado.
	// Señal de robo de token: la cadena completa queda revocada. Hacia el
	// cliente se ve como un 401 común, sin pista de que se detectó el reuso.
	ErrTokenReuseDetected = errors.New("token: refresh token reuse detected")

	// ErrTenantSuspended: la institución no admite logins.
	ErrTenantSuspended = errors.New("token: tenant suspended")

	// ErrRevocationUnavailable: no se pudo consultar la blacklist. El core
	// falla cerrado: sin respuesta de la blacklist no hay acceso.
	ErrRevocationUnavailable = errors.New("token: revocation store unavailable")
)

const refreshTokenBytes = 32

// Session es el par de credenciales emitido en login/refresh.
type Session struct {
	AccessToken      string
	AccessTokenID    string
	AccessExpiresAt  time.Time
	RefreshToken     string // valor crudo, solo viaja en el set-cookie
	RefreshTokenID   string
	RefreshExpiresAt time.Time
	SessionID        string
	Principal        authz.Principal
}

// Service emite, verifica, rota y revoca tokens.
type Service struct {
	issuer      *jwtx.Issuer
	chains      repository.RefreshChainRepository
	revocations revocation.Store
	tenants     *directory.Directory
	auditor     *audit.Recorder
	refreshTTL  time.Duration
}

// Deps son las dependencias del servicio.
type Deps struct {
	Issuer      *jwtx.Issuer
	Chains      repository.RefreshChainRepository
	Revocations revocation.Store
	Tenants     *directory.Directory
	Audit       *audit.Recorder
	RefreshTTL  time.Duration
}

func NewService(d Deps) *Service {
	ttl := d.RefreshTTL
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Service{
		issuer:      d.Issuer,
		chains:      d.Chains,
		revocations: d.Revocations,
		tenants:     d.Tenants,
		auditor:     d.Audit,
		refreshTTL:  ttl,
	}
}

// IssueSession crea una sesión nueva: access token firmado + raíz de una
// cadena de refresh. El status del tenant se chequea ACÁ, al login, no en
// cada request.
func (s *Service) IssueSession(ctx context.Context, userID, tenantID, role, clientIP string) (*Session, error) {
	p := authz.Principal{UserID: userID, TenantID: tenantID, Role: role}

	if !p.IsPrivileged() {
		if tenantID == "" {
			// Integridad de datos rota (usuario sin tenant). Jamás se
			// sustituye por un tenant default.
			logger.From(ctx).Error("login for user without tenant",
				logger.Component("token"),
				logger.UserID(userID),
			)
			return nil, authz.ErrMissingTenant
		}
		status, err := s.tenants.Status(ctx, tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, authz.ErrMissingTenant
			}
			return nil, fmt.Errorf("token: tenant status: %w", err)
		}
		if status != repository.TenantActive {
			return nil, ErrTenantSuspended
		}
	}

	p.SessionID = uuid.NewString()
	return s.mint(ctx, p, clientIP)
}

// mint emite el par access+refresh para el principal dado. El refresh se
// inserta como eslabón nuevo de la cadena p.SessionID.
func (s *Service) mint(ctx context.Context, p authz.Principal, clientIP string) (*Session, error) {
	access, err := s.issuer.IssueAccess(p)
	if err != nil {
		return nil, fmt.Errorf("token: sign access: %w", err)
	}

	raw, err := tokens.GenerateOpaque(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("token: generate refresh: %w", err)
	}

	in := repository.CreateRefreshTokenInput{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		TenantID:  p.TenantID,
		SessionID: p.SessionID,
		Role:      p.Role,
		TokenHash: tokens.SHA256Hex(raw),
		IssuingIP: clientIP,
		TTL:       s.refreshTTL,
	}
	if err := s.chains.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("token: persist refresh: %w", err)
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()

	return &Session{
		AccessToken:      access.Raw,
		AccessTokenID:    access.TokenID,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     raw,
		RefreshTokenID:   in.ID,
		RefreshExpiresAt: time.Now().UTC().Add(s.refreshTTL),
		SessionID:        p.SessionID,
		Principal:        p,
	}, nil
}

// VerifyAccessToken valida firma, expiración y blacklist, y devuelve el
// Principal. Única fuente legítima de principals en todo el sistema.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (authz.Principal, error) {
	claims, err := s.issuer.ParseAccess(raw)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrTokenExpired):
			metrics.TokenVerifyFailures.WithLabelValues("expired").Inc()
		default:
			metrics.TokenVerifyFailures.WithLabelValues("signature").Inc()
		}
		return authz.Principal{}, err
	}

	revoked, err := s.revocations.Contains(ctx, claims.TokenID)
	if err != nil {
		// Fail closed: sin blacklist no hay acceso.
		return authz.Principal{}, fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		metrics.TokenVerifyFailures.WithLabelValues("revoked").Inc()
		return authz.Principal{}, ErrTokenRevoked
	}

	return authz.Principal{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// ParseAccessClaims reexpone el parse verificado para el borde HTTP, que
// necesita jti/exp del access token para el logout. No consulta la blacklist.
func (s *Service) ParseAccessClaims(raw string) (jwtx.Claims, error) {
	return s.issuer.ParseAccess(raw)
}

// RotateRefreshToken canjea un refresh válido por un par nuevo, revocando el
// presentado en el mismo update atómico. Presentar un eslabón ya rotado es un
// evento de reuso: revoca la cadena entera y audita critical.
func (s *Service) RotateRefreshToken(ctx context.Context, raw, clientIP string) (*Session, error) {
	rt, err := s.chains.GetByHash(ctx, tokens.SHA256Hex(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("token: lookup refresh: %w", err)
	}

	now := time.Now()
	if rt.RevokedAt != nil {
		// Eslabón ya consumido: reuse event, no un rechazo normal.
		return nil, s.onReuse(ctx, rt, clientIP)
	}
	if !now.Before(rt.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	p := authz.Principal{
		UserID:    rt.UserID,
		TenantID:  rt.TenantID,
		Role:      rt.Role,
		SessionID: rt.SessionID,
	}

	access, err := s.issuer.IssueAccess(p)
	if err != nil {
		return nil, fmt.Errorf("token: sign access: %w", err)
	}
	newRaw, err := tokens.GenerateOpaque(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("token: generate refresh: %w", err)
	}

	successor := repository.CreateRefreshTokenInput{
		ID:        uuid.NewString(),
		UserID:    rt.UserID,
		TenantID:  rt.TenantID,
		SessionID: rt.SessionID,
		Role:      rt.Role,
		TokenHash: tokens.SHA256Hex(newRaw),
		IssuingIP: clientIP,
		TTL:       s.refreshTTL,
	}

	ok, err := s.chains.Rotate(ctx, rt.ID, successor)
	if err != nil {
		return nil, fmt.Errorf("token: rotate: %w", err)
	}
	if !ok {
		// Perdimos la carrera contra otra rotación del mismo eslabón:
		// mismo tratamiento que un replay.
		return nil, s.onReuse(ctx, rt, clientIP)
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()

	return &Session{
		AccessToken:      access.Raw,
		AccessTokenID:    access.TokenID,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     newRaw,
		RefreshTokenID:   successor.ID,
		RefreshExpiresAt: time.Now().UTC().Add(s.refreshTTL),
		SessionID:        rt.SessionID,
		Principal:        p,
	}, nil
}

// onReuse revoca la cadena completa y audita. Retorna siempre
// ErrTokenReuseDetected: el borde lo colapsa en un 401 común.
func (s *Service) onReuse(ctx context.Context, rt *repository.RefreshToken, clientIP string) error {
	metrics.RefreshReuseDetected.Inc()

	n, err := s.chains.RevokeChain(ctx, rt.SessionID, "reuse_detected")
	if err != nil {
		logger.From(ctx).Error("failed to revoke chain after reuse",
			logger.Component("token"),
			logger.SessionID(rt.SessionID),
			logger.Err(err),
		)
	}

	logger.From(ctx).Warn("refresh token reuse detected",
		logger.Component("token"),
		logger.UserID(rt.UserID),
		logger.SessionID(rt.SessionID),
		logger.ClientIP(clientIP),
		logger.Count(n),
	)

	// Auditoría critical: corre a término aunque el cliente corte.
	if err := s.auditor.Record(ctx, audit.Entry{
		ActorUserID:        rt.UserID,
		ActorTenantID:      rt.TenantID,
		Action:             audit.ActionRefreshReuse,
		TargetTenantID:     rt.TenantID,
		TargetResourceType: "session",
		TargetResourceID:   rt.SessionID,
		Severity:           audit.SeverityCritical,
		Detail:             "replayed refresh token from " + clientIP,
	}); err != nil {
		return err
	}
	return ErrTokenReuseDetected
}

// RevokeSession mata una sesión (logout): el jti del access entra a la
// blacklist por lo que le queda de vida y la punta de la cadena se revoca.
func (s *Service) RevokeSession(ctx context.Context, accessTokenID string, accessExpiresAt time.Time, sessionID, reason string) error {
	if err := s.revocations.Add(ctx, accessTokenID, accessExpiresAt); err != nil {
		return fmt.Errorf("token: blacklist access: %w", err)
	}
	if _, err := s.chains.RevokeChain(ctx, sessionID, reason); err != nil {
		return fmt.Errorf("token: revoke chain: %w", err)
	}
	if err := s.auditor.Record(ctx, audit.Entry{
		ActorUserID:        "",
		Action:             audit.ActionSessionRevoked,
		TargetResourceType: "session",
		TargetResourceID:   sessionID,
		Severity:           audit.SeverityInfo,
		Detail:             reason,
	}); err != nil {
		return err
	}
	return nil
}

// RevokeAllForUser revoca todas las cadenas de un usuario (acción
// administrativa / logout-all). Los access tokens vivos mueren a su TTL.
func (s *Service) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	return s.chains.RevokeAllByUser(ctx, userID, reason)
}

// Package auth implementa los services de login, refresh y logout.
// Capa fina entre los controllers y el token service: acá viven las reglas de
// credenciales; la emisión/rotación de tokens vive en internal/token.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/domain/repository"
	dto "github.com/aulalink/aulalink/internal/httpx/dto/auth"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/token"
)

// Errores de autenticación. El controller colapsa los de credenciales en una
// única respuesta genérica: no se distingue "usuario no existe" de "password
// incorrecto" ni de "usuario deshabilitado".
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTenantSuspended    = errors.New("tenant suspended")
)

// Deps contiene las dependencias del service de autenticación.
type Deps struct {
	Users  repository.UserRepository
	Tokens *token.Service
	Audit  *audit.Recorder
}

// Service agrupa login, refresh y logout.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// Login verifica credenciales y emite una sesión nueva.
func (s *Service) Login(ctx context.Context, in dto.LoginRequest, clientIP string) (*token.Session, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.deps.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug("user not found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Disabled() {
		log.Info("login attempt for disabled user", logger.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		log.Debug("password check failed", logger.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}

	sess, err := s.deps.Tokens.IssueSession(ctx, user.ID, user.TenantID, user.Role, clientIP)
	if err != nil {
		if errors.Is(err, token.ErrTenantSuspended) {
			log.Info("login rejected for suspended tenant",
				logger.UserID(user.ID),
				logger.TenantID(user.TenantID),
			)
			return nil, ErrTenantSuspended
		}
		return nil, err
	}

	// Rastro info del login: best-effort, nunca bloquea ni falla el hot path.
	_ = s.deps.Audit.Record(ctx, audit.Entry{
		ActorUserID:        user.ID,
		ActorTenantID:      user.TenantID,
		Action:             audit.ActionLogin,
		TargetResourceType: "session",
		TargetResourceID:   sess.SessionID,
		Severity:           audit.SeverityInfo,
		Detail:             "login from " + clientIP,
	})

	log.Info("user logged in",
		logger.UserID(user.ID),
		logger.TenantID(user.TenantID),
		logger.SessionID(sess.SessionID),
	)
	return sess, nil
}

// Refresh rota el refresh token presentado. Los errores de rotación (inválido,
// vencido, reuso detectado) se colapsan hacia arriba: el cliente recibe lo
// mismo en todos los casos.
func (s *Service) Refresh(ctx context.Context, rawRefresh, clientIP string) (*token.Session, error) {
	return s.deps.Tokens.RotateRefreshToken(ctx, rawRefresh, clientIP)
}

// Logout revoca la sesión actual: blacklistea el jti del access token por lo
// que le queda de vida y revoca la cadena de refresh completa.
func (s *Service) Logout(ctx context.Context, p authz.Principal, accessTokenID string, accessExpiresAt time.Time) error {
	return s.deps.Tokens.RevokeSession(ctx, accessTokenID, accessExpiresAt, p.SessionID, "logout")
}

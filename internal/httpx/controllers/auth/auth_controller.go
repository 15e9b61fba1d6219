// Package auth provee los controllers de los endpoints de autenticación.
package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aulalink/aulalink/internal/authz"
	dto "github.com/aulalink/aulalink/internal/httpx/dto/auth"
	httperrors "github.com/aulalink/aulalink/internal/httpx/errors"
	"github.com/aulalink/aulalink/internal/httpx/middlewares"
	svc "github.com/aulalink/aulalink/internal/httpx/services/auth"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/token"
)

const maxBodyBytes = 8 << 10 // 8KB: sobra para credenciales

// CookieConfig describe la cookie del refresh token.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite string // strict | lax
}

// Controller maneja login, refresh y logout.
type Controller struct {
	service *svc.Service
	cookie  CookieConfig
}

func NewController(service *svc.Service, cookie CookieConfig) *Controller {
	if cookie.Name == "" {
		cookie.Name = "__Host-aulalink_refresh"
	}
	return &Controller{service: service, cookie: cookie}
}

// Login maneja POST /v1/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Component("auth"),
		logger.Op("Login"),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid JSON", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	sess, err := c.service.Login(ctx, req, clientIP(r))
	if err != nil {
		c.writeLoginError(w, err)
		return
	}

	c.setRefreshCookie(w, sess)
	writeTokenResponse(w, sess)
}

// Refresh maneja POST /v1/auth/refresh
// El refresh token viaja SOLO en la cookie HTTP-only; no se acepta en el body.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Component("auth"),
		logger.Op("Refresh"),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	ck, err := r.Cookie(c.cookie.Name)
	if err != nil || ck.Value == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}

	sess, err := c.service.Refresh(ctx, ck.Value, clientIP(r))
	if err != nil {
		// Inválido, vencido o reuso detectado: respuesta idéntica. El detalle
		// del reuso vive solo en auditoría y métricas.
		switch {
		case errors.Is(err, token.ErrInvalidRefreshToken),
			errors.Is(err, token.ErrTokenReuseDetected):
			c.clearRefreshCookie(w)
			httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		default:
			log.Error("refresh failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	c.setRefreshCookie(w, sess)
	writeTokenResponse(w, sess)
}

// Logout maneja POST /v1/auth/logout (ruta autenticada: el gate ya corrió).
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Component("auth"),
		logger.Op("Logout"),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	p, ok := middlewares.GetPrincipal(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}
	meta, _ := middlewares.GetAccessMeta(ctx)

	if err := c.service.Logout(ctx, p, meta.TokenID, meta.ExpiresAt); err != nil {
		log.Error("logout failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	c.clearRefreshCookie(w)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)

	log.Info("session revoked", logger.SessionID(p.SessionID))
}

// writeLoginError mapea errores del service a HTTP responses.
func (c *Controller) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("email and password are required"))
	case errors.Is(err, svc.ErrInvalidCredentials):
		// Genérico a propósito: no se filtra si el usuario existe.
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, svc.ErrTenantSuspended):
		httperrors.WriteError(w, httperrors.ErrTenantSuspended)
	case errors.Is(err, authz.ErrMissingTenant):
		// Usuario sin tenant asignado: denegación uniforme, igual que el gate.
		// El detalle del dato roto queda en logs, nunca en la respuesta.
		httperrors.WriteError(w, httperrors.ErrForbidden)
	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

func (c *Controller) setRefreshCookie(w http.ResponseWriter, sess *token.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    sess.RefreshToken,
		Path:     "/", // el prefijo __Host- exige Path=/
		Expires:  sess.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: sameSite(c.cookie.SameSite),
	})
}

func (c *Controller) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: sameSite(c.cookie.SameSite),
	})
}

func sameSite(s string) http.SameSite {
	if s == "lax" {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

func writeTokenResponse(w http.ResponseWriter, sess *token.Session) {
	resp := dto.TokenResponse{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(sess.AccessExpiresAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

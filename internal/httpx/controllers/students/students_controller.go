// Package students provee los controllers del recurso de alumnos.
package students

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/domain/repository"
	dto "github.com/aulalink/aulalink/internal/httpx/dto/students"
	httperrors "github.com/aulalink/aulalink/internal/httpx/errors"
	"github.com/aulalink/aulalink/internal/httpx/middlewares"
	svc "github.com/aulalink/aulalink/internal/httpx/services/students"
	"github.com/aulalink/aulalink/internal/observability/logger"
)

const maxBodyBytes = 8 << 10

// Controller maneja las peticiones HTTP del recurso de alumnos.
type Controller struct {
	service *svc.Service
}

func NewController(service *svc.Service) *Controller {
	return &Controller{service: service}
}

// Get maneja GET /v1/students/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Component("students"),
		logger.Op("Get"),
	)

	p, ok := middlewares.GetPrincipal(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("id is required"))
		return
	}

	st, err := c.service.Get(ctx, p, id)
	if err != nil {
		c.writeGetError(w, log, err)
		return
	}

	writeStudent(w, http.StatusOK, st)
}

// Create maneja POST /v1/students
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Component("students"),
		logger.Op("Create"),
	)

	p, ok := middlewares.GetPrincipal(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req dto.CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid JSON", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.FullName == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("full_name is required"))
		return
	}

	st, err := c.service.Create(ctx, p, req)
	if err != nil {
		if errors.Is(err, svc.ErrNoTenantScope) {
			httperrors.WriteError(w, httperrors.ErrForbidden)
			return
		}
		log.Error("create failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	writeStudent(w, http.StatusCreated, st)
}

// writeGetError mapea errores del service. Punto delicado: el 404 de "no
// existe" y el 403 de "es de otro colegio" llevan EXACTAMENTE el mismo body;
// solo difiere el status code. Así una sonda de IDs no distingue qué recursos
// existen en tenants ajenos.
func (c *Controller) writeGetError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, svc.ErrNotFound):
		httperrors.WriteError(w, httperrors.ErrResourceHidden)
	case errors.Is(err, authz.ErrCrossTenantDenied):
		httperrors.WriteError(w, httperrors.ErrResourceHidden.WithStatus(http.StatusForbidden))
	case errors.Is(err, audit.ErrWriteFailed):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
	default:
		log.Error("get student failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

func writeStudent(w http.ResponseWriter, status int, st *repository.Student) {
	resp := dto.StudentResponse{
		ID:       st.ID,
		TenantID: st.TenantID,
		FullName: st.FullName,
		Grade:    st.Grade,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Package students implementa el service del recurso de alumnos: el recurso
// tenant-scoped de referencia que muestra el patrón fetch → Check → proceed
// que todo recurso del sistema debe seguir.
package students

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/domain/repository"
	dto "github.com/aulalink/aulalink/internal/httpx/dto/students"
)

var (
	// ErrNotFound: el alumno no existe. El controller lo hace indistinguible
	// de un deny cross-tenant en el body de la respuesta.
	ErrNotFound = errors.New("students: not found")

	// ErrNoTenantScope: el principal privilegiado no tiene tenant propio y la
	// creación exige uno. El operador de plataforma lee cross-tenant, no
	// escribe recursos a nombre de nadie.
	ErrNoTenantScope = errors.New("students: principal has no tenant scope")
)

type Deps struct {
	Repo      repository.StudentRepository
	Validator *authz.Validator
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// Get busca el alumno y valida pertenencia ANTES de devolver nada.
// El orden importa: primero se resuelve el tenant dueño del recurso, después
// se decide; el dato solo sale si la decisión fue allow.
func (s *Service) Get(ctx context.Context, p authz.Principal, id string) (*repository.Student, error) {
	st, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.deps.Validator.Check(ctx, p, st.TenantID, "student", st.ID); err != nil {
		return nil, err
	}
	return st, nil
}

// Create crea un alumno en el tenant DEL PRINCIPAL, ignorando cualquier
// tenant que el cliente haya intentado colar.
func (s *Service) Create(ctx context.Context, p authz.Principal, in dto.CreateStudentRequest) (*repository.Student, error) {
	if p.TenantID == "" {
		return nil, ErrNoTenantScope
	}
	st := repository.Student{
		ID:       uuid.NewString(),
		TenantID: authz.StampTenant(p, ""),
		FullName: in.FullName,
		Grade:    in.Grade,
	}
	if err := s.deps.Repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return &st, nil
}

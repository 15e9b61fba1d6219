package repository

import "context"

// TenantStatus es la condición de gate del tenant. Se consulta SOLO al login,
// no en cada request.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant es la vista mínima que el core necesita de una institución.
// El resto del schema del tenant es dueño de otro colaborador; acá el ID es
// una clave de aislamiento opaca.
type Tenant struct {
	ID     string
	Name   string
	Status TenantStatus
}

// TenantRepository resuelve tenants por ID.
type TenantRepository interface {
	// GetByID retorna ErrNotFound si el tenant no existe.
	GetByID(ctx context.Context, id string) (*Tenant, error)
}

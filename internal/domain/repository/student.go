package repository

import "context"

// Student es el recurso tenant-scoped de ejemplo que atraviesa el pipeline
// gate → ownership check. La lógica de negocio real de alumnos vive en otro
// colaborador; acá solo importa su tenant_id.
type Student struct {
	ID       string
	TenantID string
	FullName string
	Grade    string
}

// StudentRepository acceso mínimo a alumnos para ejercitar el ownership check.
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*Student, error)
	Create(ctx context.Context, s Student) error
}

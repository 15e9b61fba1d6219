package authz

import "errors"

// Errores de autorización. Se recuperan en el borde HTTP como 403 genérico;
// el motivo concreto queda solo en la auditoría, nunca en el body.
var (
	// ErrMissingTenant: principal no privilegiado sin tenant. Indica un
	// problema de integridad de datos (usuario sin tenant asignado), no un
	// ataque, pero NUNCA se resuelve asignando un tenant por defecto.
	ErrMissingTenant = errors.New("authz: principal without tenant")

	// ErrCrossTenantDenied: el principal intentó acceder a un recurso de otro
	// tenant sin ser privilegiado.
	ErrCrossTenantDenied = errors.New("authz: cross-tenant access denied")
)

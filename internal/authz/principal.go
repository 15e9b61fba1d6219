// Package authz contiene el núcleo de aislamiento de tenants: el Principal
// verificado por request y el validador de pertenencia que todo handler debe
// invocar antes de tocar un recurso tenant-scoped.
package authz

// RolePlatformOperator es el nombre por defecto del único rol que puede
// cruzar límites de tenant. Todo acceso cross-tenant de este rol queda
// auditado obligatoriamente.
const RolePlatformOperator = "platform_operator"

// privilegedRole es el nombre efectivo del rol privilegiado. Se fija UNA vez
// en el arranque desde la configuración; después es de solo lectura.
var privilegedRole = RolePlatformOperator

// SetPrivilegedRole configura el nombre del rol privilegiado. Debe llamarse
// antes de servir requests; un nombre vacío conserva el default.
func SetPrivilegedRole(role string) {
	if role != "" {
		privilegedRole = role
	}
}

// Principal es la identidad verificada de un request: usuario + tenant + rol.
//
// Es INMUTABLE después de su construcción y se produce EXCLUSIVAMENTE en el
// gate a partir de un token verificado. Nunca se acepta desde el body, query
// string ni headers del cliente.
type Principal struct {
	// UserID es el sujeto del token (claim sub).
	UserID string

	// TenantID es el tenant del principal. Vacío SOLO para el rol privilegiado;
	// para cualquier otro rol su ausencia es un fallo duro de autorización,
	// jamás se sustituye por un tenant por defecto.
	TenantID string

	// Role es el rol del principal dentro de su tenant (teacher, student,
	// admin, ...) o RolePlatformOperator.
	Role string

	// SessionID identifica la sesión de login (la cadena de refresh tokens).
	SessionID string
}

// IsPrivileged indica si el principal puede cruzar límites de tenant.
// Este predicado está centralizado acá a propósito: ningún handler debe
// comparar roles por su cuenta.
func (p Principal) IsPrivileged() bool {
	return p.Role == privilegedRole
}

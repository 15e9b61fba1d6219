// Package audit define el registro append-only de decisiones de seguridad:
// accesos privilegiados cross-tenant, denegaciones, detección de reuso de
// refresh tokens. Los registros nunca se actualizan ni borran desde el core.
package audit

import (
	"context"
	"errors"
	"time"
)

// Severity clasifica un registro. El orden importa: warning o superior exige
// escritura durable y sincrónica; info es best-effort.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityElevated
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityElevated:
		return "elevated"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Acciones estándar registradas por el core.
const (
	ActionPrivilegedAccess  = "privileged-access"
	ActionCrossTenantDenied = "cross-tenant-denied"
	ActionMissingTenant     = "missing-tenant"
	ActionRefreshReuse      = "refresh-reuse-detected"
	ActionSessionRevoked    = "session-revoked"
	ActionLogin             = "user-login"
)

// Entry es un registro de auditoría. Transport-agnostic: los sinks deciden
// cómo persistirlo.
type Entry struct {
	ID                 string
	Timestamp          time.Time
	ActorUserID        string
	ActorTenantID      string // vacío para el rol privilegiado
	Action             string
	TargetTenantID     string
	TargetResourceType string
	TargetResourceID   string
	Severity           Severity
	Detail             string
}

// Sink persiste registros. Debe ser seguro para escritores concurrentes sin
// orden entre entradas.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// ErrWriteFailed indica que un write warning+ no pudo persistirse y la política
// configurada es fail-closed. Con fail-open el Recorder nunca lo retorna: la
// falla se escala por la vía de alerta y el request continúa.
var ErrWriteFailed = errors.New("audit: write failed")

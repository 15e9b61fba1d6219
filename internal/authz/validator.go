package authz

import (
	"context"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/metrics"
	"github.com/aulalink/aulalink/internal/observability/logger"
)

// Validator es el chequeo de pertenencia que TODO handler invoca inmediatamente
// antes de leer o escribir un recurso tenant-scoped. Centraliza la regla:
//
//	Allow ⟺ principal.TenantID == resourceTenantID ∨ principal privilegiado
//
// con la garantía de que ningún acceso privilegiado cross-tenant puede saltarse
// la auditoría: el registro elevated se escribe acá, no en los handlers.
type Validator struct {
	audit *audit.Recorder
}

func NewValidator(rec *audit.Recorder) *Validator {
	return &Validator{audit: rec}
}

// Check decide el acceso de un principal a un recurso del tenant dado.
// Retorna nil (allow) o ErrCrossTenantDenied / audit.ErrWriteFailed.
//
//   - Mismo tenant: allow sin registro de auditoría. Es el camino abrumadoramente
//     común y no paga el costo de un write por request.
//   - Privilegiado sobre otro tenant: allow, con EXACTAMENTE un registro
//     elevated escrito ANTES de que el handler continúe.
//   - Cualquier otro caso: deny con registro critical.
func (v *Validator) Check(ctx context.Context, p Principal, resourceTenantID, resourceType, resourceID string) error {
	if p.TenantID != "" && p.TenantID == resourceTenantID {
		metrics.AuthzDecisions.WithLabelValues("allow").Inc()
		return nil
	}

	if p.IsPrivileged() {
		metrics.AuthzDecisions.WithLabelValues("allow_privileged").Inc()
		if err := v.audit.Record(ctx, audit.Entry{
			ActorUserID:        p.UserID,
			ActorTenantID:      p.TenantID,
			Action:             audit.ActionPrivilegedAccess,
			TargetTenantID:     resourceTenantID,
			TargetResourceType: resourceType,
			TargetResourceID:   resourceID,
			Severity:           audit.SeverityElevated,
		}); err != nil {
			// Solo con política fail-closed: el acceso no procede sin rastro.
			return err
		}
		return nil
	}

	metrics.AuthzDecisions.WithLabelValues("deny").Inc()
	logger.From(ctx).Warn("cross-tenant access denied",
		logger.Component("authz"),
		logger.UserID(p.UserID),
		logger.TenantID(p.TenantID),
		logger.TargetTenantID(resourceTenantID),
		logger.Resource(resourceType, resourceID),
	)
	if err := v.audit.Record(ctx, audit.Entry{
		ActorUserID:        p.UserID,
		ActorTenantID:      p.TenantID,
		Action:             audit.ActionCrossTenantDenied,
		TargetTenantID:     resourceTenantID,
		TargetResourceType: resourceType,
		TargetResourceID:   resourceID,
		Severity:           audit.SeverityCritical,
	}); err != nil {
		return err
	}
	return ErrCrossTenantDenied
}

// StampTenant fija el tenant de un recurso nuevo desde el principal,
// ignorando y pisando cualquier tenant id provisto por el cliente.
// Los handlers de creación deben usar esto, nunca el valor del payload.
func StampTenant(p Principal, callerSupplied string) string {
	_ = callerSupplied // se descarta a propósito: ignore-and-overwrite
	return p.TenantID
}

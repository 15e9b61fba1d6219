package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth/authz Prometheus metrics. Definidas en un paquete standalone para evitar
// ciclos de import entre el gate HTTP, el token service y la auditoría.

var (
	AuthzDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Decisiones del ownership validator por resultado",
	}, []string{"decision"}) // allow | allow_privileged | deny

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens emitidos por tipo",
	}, []string{"kind"}) // access | refresh

	TokenVerifyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_verify_failures_total",
		Help: "Fallos de verificación de access tokens por motivo",
	}, []string{"reason"}) // signature | expired | revoked

	RefreshReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detected_total",
		Help: "Replays de refresh tokens ya rotados (señal de robo de token)",
	})

	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Writes de auditoría warning+ que fallaron (vía de alerta)",
	})

	AuditRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_records_total",
		Help: "Registros de auditoría emitidos por severidad",
	}, []string{"severity"})
)

// RegisterAuth registra las métricas en el registry dado (o el default si es nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		AuthzDecisions,
		TokensIssued,
		TokenVerifyFailures,
		RefreshReuseDetected,
		AuditWriteFailures,
		AuditRecords,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

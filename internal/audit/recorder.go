package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aulalink/aulalink/internal/metrics"
	"github.com/aulalink/aulalink/internal/observability/logger"
)

// Recorder envuelve un Sink con la política de durabilidad del core:
//
//   - warning+ se escribe de forma sincrónica, desacoplada de la cancelación
//     del request (context.WithoutCancel): la señal de seguridad importa
//     aunque el cliente ya haya cortado.
//   - info se escribe best-effort en una goroutine aparte.
//   - Si un write warning+ falla, la falla se escala SIEMPRE por una vía
//     sincrónica separada (log error + contador), aunque el request siga.
type Recorder struct {
	sink       Sink
	timeout    time.Duration
	failClosed bool
}

// NewRecorder crea un Recorder. timeout acota cada write durable; debe ser
// menor que el deadline del request entrante.
func NewRecorder(sink Sink, timeout time.Duration, failClosed bool) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sink: sink, timeout: timeout, failClosed: failClosed}
}

// Record completa ID/timestamp y persiste según la severidad.
// Para warning+ retorna ErrWriteFailed solo si la política es fail-closed.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	metrics.AuditRecords.WithLabelValues(e.Severity.String()).Inc()

	if e.Severity < SeverityWarning {
		// Best-effort: no bloquea el hot path.
		go func() {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
			defer cancel()
			if err := r.sink.Record(wctx, e); err != nil {
				logger.L().Debug("audit info write failed",
					logger.Component("audit"),
					logger.String("action", e.Action),
					logger.Err(err),
				)
			}
		}()
		return nil
	}

	// Durable: corre hasta completarse o fallar explícitamente, aunque el
	// cliente se desconecte.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.Record(wctx, e); err != nil {
		// Vía de alerta separada: el fallo jamás se traga en silencio.
		metrics.AuditWriteFailures.Inc()
		logger.L().Error("audit write failed",
			logger.Component("audit"),
			logger.Severity(e.Severity.String()),
			logger.String("action", e.Action),
			logger.UserID(e.ActorUserID),
			logger.TargetTenantID(e.TargetTenantID),
			logger.Err(err),
		)
		if r.failClosed {
			return ErrWriteFailed
		}
		return nil
	}
	return nil
}

// Package router arma el árbol de rutas y la cadena de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/aulalink/aulalink/internal/httpx/controllers/auth"
	healthctrl "github.com/aulalink/aulalink/internal/httpx/controllers/health"
	studentsctrl "github.com/aulalink/aulalink/internal/httpx/controllers/students"
	"github.com/aulalink/aulalink/internal/httpx/middlewares"
)

// Deps contiene todo lo que el router necesita ya construido.
type Deps struct {
	Auth     *authctrl.Controller
	Students *studentsctrl.Controller
	Health   *healthctrl.Controller

	// Gate de aislamiento: corre sobre TODA ruta; las exentas las decide él
	// por su lista explícita, no por dónde se monta en el árbol.
	Gate middlewares.Middleware

	// Rate limiting para los endpoints de autenticación. nil = sin límite.
	LoginRate   middlewares.Middleware
	RefreshRate middlewares.Middleware

	// Registry de métricas para /metrics.
	Metrics prometheus.Gatherer
}

// New construye el handler raíz.
//
// Orden de la cadena global: RequestID -> Recover -> Gate -> Logging.
// El gate corre ANTES del logging para que los logs de request lleven
// tenant/user cuando el token es válido.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithRecover())
	if deps.Gate != nil {
		r.Use(deps.Gate)
	}
	r.Use(middlewares.WithLogging())

	// ─── Rutas exentas (el gate las deja pasar por lista explícita) ───
	r.Get("/healthz", deps.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))

	login := http.HandlerFunc(deps.Auth.Login)
	refresh := http.HandlerFunc(deps.Auth.Refresh)
	if deps.LoginRate != nil {
		r.Method(http.MethodPost, "/v1/auth/login", deps.LoginRate(login))
	} else {
		r.Method(http.MethodPost, "/v1/auth/login", login)
	}
	if deps.RefreshRate != nil {
		r.Method(http.MethodPost, "/v1/auth/refresh", deps.RefreshRate(refresh))
	} else {
		r.Method(http.MethodPost, "/v1/auth/refresh", refresh)
	}

	// ─── Rutas autenticadas ───
	r.Post("/v1/auth/logout", deps.Auth.Logout)
	r.Route("/v1/students", func(r chi.Router) {
		r.Post("/", deps.Students.Create)
		r.Get("/{id}", deps.Students.Get)
	})

	return r
}

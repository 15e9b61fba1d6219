package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/directory"
	"github.com/aulalink/aulalink/internal/domain/repository"
	authctrl "github.com/aulalink/aulalink/internal/httpx/controllers/auth"
	healthctrl "github.com/aulalink/aulalink/internal/httpx/controllers/health"
	studentsctrl "github.com/aulalink/aulalink/internal/httpx/controllers/students"
	"github.com/aulalink/aulalink/internal/httpx/middlewares"
	authsvc "github.com/aulalink/aulalink/internal/httpx/services/auth"
	studentssvc "github.com/aulalink/aulalink/internal/httpx/services/students"
	jwtx "github.com/aulalink/aulalink/internal/jwt"
	"github.com/aulalink/aulalink/internal/metrics"
	"github.com/aulalink/aulalink/internal/rate"
	"github.com/aulalink/aulalink/internal/revocation"
	memstore "github.com/aulalink/aulalink/internal/store/memory"
	"github.com/aulalink/aulalink/internal/token"
)

const (
	cookieName   = "__Host-aulalink_refresh"
	teacherPass  = "correct-horse"
	operatorPass = "battery-staple"
)

type env struct {
	ts    *httptest.Server
	store *memstore.Store
	sink  *audit.MemorySink
}

func newEnv(t *testing.T) *env {
	t.Helper()

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.RegisterAuth(reg))

	ks, err := jwtx.NewKeystore()
	require.NoError(t, err)

	store := memstore.New()
	store.SeedTenant(repository.Tenant{ID: "school-a", Name: "Escuela A", Status: repository.TenantActive})
	store.SeedTenant(repository.Tenant{ID: "school-b", Name: "Escuela B", Status: repository.TenantActive})
	store.SeedTenant(repository.Tenant{ID: "school-x", Name: "Escuela X", Status: repository.TenantSuspended})

	seedUser(t, store, "u-ana", "school-a", "ana@escuela-a.edu", teacherPass, "teacher")
	seedUser(t, store, "u-beto", "school-b", "beto@escuela-b.edu", teacherPass, "teacher")
	seedUser(t, store, "u-op", "", "op@aulalink.dev", operatorPass, authz.RolePlatformOperator)
	seedUser(t, store, "u-sus", "school-x", "sus@escuela-x.edu", teacherPass, "teacher")
	// Dato roto a propósito: rol común sin tenant asignado.
	seedUser(t, store, "u-limbo", "", "limbo@escuela-a.edu", teacherPass, "teacher")

	store.SeedStudent(repository.Student{ID: "st-a1", TenantID: "school-a", FullName: "Alumno A1", Grade: "5"})
	store.SeedStudent(repository.Student{ID: "st-b1", TenantID: "school-b", FullName: "Alumno B1", Grade: "6"})

	sink := audit.NewMemorySink()
	recorder := audit.NewRecorder(sink, time.Second, false)
	validator := authz.NewValidator(recorder)

	tokenSvc := token.NewService(token.Deps{
		Issuer:      jwtx.NewIssuer("https://auth.test", ks, time.Hour),
		Chains:      store.Chains(),
		Revocations: revocation.NewMemory(),
		Tenants:     directory.New(store.Tenants(), time.Minute),
		Audit:       recorder,
		RefreshTTL:  time.Hour,
	})

	handler := New(Deps{
		Auth: authctrl.NewController(
			authsvc.NewService(authsvc.Deps{Users: store.Users(), Tokens: tokenSvc, Audit: recorder}),
			authctrl.CookieConfig{Name: cookieName, SameSite: "strict"},
		),
		Students: studentsctrl.NewController(
			studentssvc.NewService(studentssvc.Deps{Repo: store.Students(), Validator: validator}),
		),
		Health: healthctrl.NewController(map[string]healthctrl.Pinger{}),
		Gate: middlewares.WithTenantGate(middlewares.GateConfig{
			Tokens: tokenSvc,
			Audit:  recorder,
			ExemptPaths: []string{
				"/v1/auth/login",
				"/v1/auth/refresh",
				"/healthz",
				"/metrics",
			},
		}),
		// Mismo cableado que un deploy sin redis: limiter noop, nunca nil.
		LoginRate:   middlewares.WithRateLimit(rate.NoopLimiter{}),
		RefreshRate: middlewares.WithRateLimit(rate.NoopLimiter{}),
		Metrics:     reg,
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &env{ts: ts, store: store, sink: sink}
}

func seedUser(t *testing.T, s *memstore.Store, id, tenantID, email, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.SeedUser(repository.User{
		ID: id, TenantID: tenantID, Email: email,
		PasswordHash: string(hash), Role: role,
	})
}

// login hace el POST y devuelve el access token y la cookie de refresh.
func (e *env) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(e.ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.AccessToken)
	require.Equal(t, "Bearer", out.TokenType)

	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			refresh = c
		}
	}
	require.NotNil(t, refresh, "login must set the refresh cookie")
	require.True(t, refresh.HttpOnly)
	return out.AccessToken, refresh
}

func (e *env) get(t *testing.T, path, accessToken string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestLoginReturnsAccessAndCookieOnly(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]string{"email": "ana@escuela-a.edu", "password": teacherPass})
	resp, err := http.Post(e.ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	// El refresh token jamás aparece en el body JSON.
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Contains(t, out, "access_token")
	require.NotContains(t, out, "refresh_token")
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestLoginWrongPasswordGeneric(t *testing.T) {
	e := newEnv(t)
	for _, creds := range []map[string]string{
		{"email": "ana@escuela-a.edu", "password": "wrong"},
		{"email": "nadie@escuela-a.edu", "password": "wrong"},
	} {
		body, _ := json.Marshal(creds)
		resp, err := http.Post(e.ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		// Usuario inexistente y password incorrecto: misma respuesta.
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestLoginSuspendedTenant(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]string{"email": "sus@escuela-x.edu", "password": teacherPass})
	resp, err := http.Post(e.ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginUserWithoutTenantForbidden(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]string{"email": "limbo@escuela-a.edu", "password": teacherPass})
	resp, err := http.Post(e.ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	// Credenciales válidas pero sin tenant: denegación de autorización, no un
	// error interno. Nunca se inventa un tenant por defecto.
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSameTenantRead(t *testing.T) {
	e := newEnv(t)
	access, _ := e.login(t, "ana@escuela-a.edu", teacherPass)

	resp, body := e.get(t, "/v1/students/st-a1", access)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st map[string]string
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, "st-a1", st["id"])
	require.Equal(t, "school-a", st["tenant_id"])
}

func TestCrossTenantDeniedBodyMatchesNotFound(t *testing.T) {
	e := newEnv(t)
	access, _ := e.login(t, "ana@escuela-a.edu", teacherPass)

	// Recurso de otro colegio: 403.
	denied, deniedBody := e.get(t, "/v1/students/st-b1", access)
	require.Equal(t, http.StatusForbidden, denied.StatusCode)

	// Recurso inexistente: 404.
	missing, missingBody := e.get(t, "/v1/students/st-nope", access)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	// Los bodies son BYTE a BYTE iguales: una sonda de IDs no aprende nada.
	require.Equal(t, string(missingBody), string(deniedBody))

	// Y el deny quedó auditado critical.
	crit := e.sink.BySeverity(audit.SeverityCritical)
	require.NotEmpty(t, crit)
	require.Equal(t, audit.ActionCrossTenantDenied, crit[0].Action)
}

func TestPrivilegedCrossTenantReadAudited(t *testing.T) {
	e := newEnv(t)
	access, _ := e.login(t, "op@aulalink.dev", operatorPass)

	resp, _ := e.get(t, "/v1/students/st-b1", access)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	elev := e.sink.BySeverity(audit.SeverityElevated)
	require.Len(t, elev, 1)
	require.Equal(t, audit.ActionPrivilegedAccess, elev[0].Action)
	require.Equal(t, "school-b", elev[0].TargetTenantID)
	require.Equal(t, "u-op", elev[0].ActorUserID)
}

func TestCreateStudentStampsTenant(t *testing.T) {
	e := newEnv(t)
	access, _ := e.login(t, "ana@escuela-a.edu", teacherPass)

	body, _ := json.Marshal(map[string]string{"full_name": "Nuevo Alumno", "grade": "3"})
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/v1/students", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var st map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	// El tenant sale del principal, no del payload.
	require.Equal(t, "school-a", st["tenant_id"])
}

func TestRefreshRotatesAndReplayKillsChain(t *testing.T) {
	e := newEnv(t)
	_, refresh := e.login(t, "ana@escuela-a.edu", teacherPass)

	doRefresh := func(c *http.Cookie) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/v1/auth/refresh", nil)
		req.AddCookie(c)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp
	}

	// Rotación normal: 200 y cookie nueva.
	r1 := doRefresh(refresh)
	require.Equal(t, http.StatusOK, r1.StatusCode)
	var next *http.Cookie
	for _, c := range r1.Cookies() {
		if c.Name == cookieName && c.Value != "" {
			next = c
		}
	}
	require.NotNil(t, next)
	require.NotEqual(t, refresh.Value, next.Value)

	// Replay del viejo: 401 y la cadena entera muere.
	r2 := doRefresh(refresh)
	require.Equal(t, http.StatusUnauthorized, r2.StatusCode)

	// El sucesor legítimo también quedó revocado.
	r3 := doRefresh(next)
	require.Equal(t, http.StatusUnauthorized, r3.StatusCode)
}

func TestLogoutKillsAccessImmediately(t *testing.T) {
	e := newEnv(t)
	access, refresh := e.login(t, "ana@escuela-a.edu", teacherPass)

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// El access muere de inmediato aunque a su exp le quede casi una hora.
	after, _ := e.get(t, "/v1/students/st-a1", access)
	require.Equal(t, http.StatusUnauthorized, after.StatusCode)

	// Y el refresh de la sesión tampoco sirve.
	rreq, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/v1/auth/refresh", nil)
	rreq.AddCookie(refresh)
	rresp, err := http.DefaultClient.Do(rreq)
	require.NoError(t, err)
	rresp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, rresp.StatusCode)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.get(t, "/v1/students/st-a1", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, body := e.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"status":"ok"`)
}

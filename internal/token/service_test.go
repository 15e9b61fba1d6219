package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aulalink/aulalink/internal/audit"
	"github.com/aulalink/aulalink/internal/authz"
	"github.com/aulalink/aulalink/internal/directory"
	"github.com/aulalink/aulalink/internal/domain/repository"
	jwtx "github.com/aulalink/aulalink/internal/jwt"
	"github.com/aulalink/aulalink/internal/revocation"
	memstore "github.com/aulalink/aulalink/internal/store/memory"
)

type fixture struct {
	svc   *Service
	store *memstore.Store
	sink  *audit.MemorySink
	rev   revocation.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ks, err := jwtx.NewKeystore()
	if err != nil {
		t.Fatal(err)
	}
	store := memstore.New()
	store.SeedTenant(repository.Tenant{ID: "school-a", Name: "Escuela A", Status: repository.TenantActive})
	store.SeedTenant(repository.Tenant{ID: "school-x", Name: "Escuela X", Status: repository.TenantSuspended})

	sink := audit.NewMemorySink()
	rev := revocation.NewMemory()
	svc := NewService(Deps{
		Issuer:      jwtx.NewIssuer("https://auth.test", ks, time.Hour),
		Chains:      store.Chains(),
		Revocations: rev,
		Tenants:     directory.New(store.Tenants(), time.Minute),
		Audit:       audit.NewRecorder(sink, time.Second, false),
		RefreshTTL:  time.Hour,
	})
	return &fixture{svc: svc, store: store, sink: sink, rev: rev}
}

func TestIssueSessionAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" || sess.SessionID == "" {
		t.Fatalf("incomplete session: %+v", sess)
	}

	p, err := f.svc.VerifyAccessToken(ctx, sess.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if p.UserID != "u-1" || p.TenantID != "school-a" || p.Role != "teacher" {
		t.Fatalf("principal mismatch: %+v", p)
	}
	if p.SessionID != sess.SessionID {
		t.Fatalf("session mismatch: %s != %s", p.SessionID, sess.SessionID)
	}
}

func TestIssueSessionSuspendedTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IssueSession(context.Background(), "u-1", "school-x", "teacher", "")
	if !errors.Is(err, ErrTenantSuspended) {
		t.Fatalf("expected ErrTenantSuspended, got %v", err)
	}
}

func TestIssueSessionMissingTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IssueSession(context.Background(), "u-1", "", "teacher", "")
	if !errors.Is(err, authz.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}

func TestIssueSessionPrivilegedSkipsTenantCheck(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.IssueSession(context.Background(), "op-1", "", authz.RolePlatformOperator, "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := f.svc.VerifyAccessToken(context.Background(), sess.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsPrivileged() || p.TenantID != "" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}

	next, err := f.svc.RotateRefreshToken(ctx, sess.RefreshToken, "")
	if err != nil {
		t.Fatal(err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if next.SessionID != sess.SessionID {
		t.Fatal("rotation must preserve session id")
	}
	if next.Principal.TenantID != "school-a" || next.Principal.Role != "teacher" {
		t.Fatalf("principal not carried over: %+v", next.Principal)
	}

	// El eslabón viejo quedó marcado como rotado y enlazado al sucesor.
	old, ok := f.store.TokenByID(sess.RefreshTokenID)
	if !ok {
		t.Fatal("old link missing")
	}
	if old.RevokedAt == nil || old.RevokedReason != "rotated" {
		t.Fatalf("old link not revoked: %+v", old)
	}
	if old.ReplacedByID == nil || *old.ReplacedByID != next.RefreshTokenID {
		t.Fatal("old link not chained to successor")
	}
}

func TestRotateUnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RotateRefreshToken(context.Background(), "no-such-token", "")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestReuseDetectionRevokesChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}
	next, err := f.svc.RotateRefreshToken(ctx, sess.RefreshToken, "")
	if err != nil {
		t.Fatal(err)
	}

	// Replay del eslabón ya consumido: evento de reuso.
	_, err = f.svc.RotateRefreshToken(ctx, sess.RefreshToken, "6.6.6.6")
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}

	// La cadena ENTERA quedó revocada, incluido el sucesor legítimo.
	succ, ok := f.store.TokenByID(next.RefreshTokenID)
	if !ok || succ.RevokedAt == nil {
		t.Fatalf("successor should be revoked: %+v", succ)
	}
	if _, err := f.svc.RotateRefreshToken(ctx, next.RefreshToken, ""); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("revoked successor should read as reuse, got %v", err)
	}

	// Y quedó el registro critical en auditoría.
	crit := f.sink.BySeverity(audit.SeverityCritical)
	if len(crit) == 0 {
		t.Fatal("expected critical audit record")
	}
	found := false
	for _, e := range crit {
		if e.Action == audit.ActionRefreshReuse && e.TargetResourceID == sess.SessionID {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing refresh-reuse record for session %s: %+v", sess.SessionID, crit)
	}
}

func TestConcurrentRotationExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.RotateRefreshToken(ctx, sess.RefreshToken, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrTokenReuseDetected) && !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins > 1 {
		t.Fatalf("at most one rotation may succeed, got %d", wins)
	}
}

func TestRevokeSessionBlacklistsAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.VerifyAccessToken(ctx, sess.AccessToken); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.RevokeSession(ctx, sess.AccessTokenID, sess.AccessExpiresAt, sess.SessionID, "logout"); err != nil {
		t.Fatal(err)
	}

	// El access muere de inmediato aunque su exp siga en el futuro.
	if _, err := f.svc.VerifyAccessToken(ctx, sess.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	// Y el refresh también.
	if _, err := f.svc.RotateRefreshToken(ctx, sess.RefreshToken, ""); err == nil {
		t.Fatal("refresh should be dead after revoke")
	}
}

type failingRevocations struct{}

func (failingRevocations) Add(ctx context.Context, id string, exp time.Time) error {
	return errors.New("boom")
}
func (failingRevocations) Contains(ctx context.Context, id string) (bool, error) {
	return false, errors.New("boom")
}

func TestVerifyFailsClosedWhenRevocationDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}

	f.svc.revocations = failingRevocations{}
	_, err = f.svc.VerifyAccessToken(ctx, sess.AccessToken)
	if !errors.Is(err, ErrRevocationUnavailable) {
		t.Fatalf("expected ErrRevocationUnavailable, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, _ := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	s2, _ := f.svc.IssueSession(ctx, "u-1", "school-a", "teacher", "")
	f.svc.IssueSession(ctx, "u-2", "school-a", "teacher", "")

	n, err := f.svc.RevokeAllForUser(ctx, "u-1", "admin_revoked")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	for _, s := range []*Session{s1, s2} {
		if _, err := f.svc.RotateRefreshToken(ctx, s.RefreshToken, ""); err == nil {
			t.Fatal("refresh should be revoked")
		}
	}
}

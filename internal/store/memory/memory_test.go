package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

func seedToken(t *testing.T, s *Store, id, sessionID string) {
	t.Helper()
	err := s.Chains().Create(context.Background(), repository.CreateRefreshTokenInput{
		ID:        id,
		UserID:    "u-1",
		TenantID:  "school-a",
		SessionID: sessionID,
		Role:      "teacher",
		TokenHash: "hash-" + id,
		TTL:       time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetByHash(t *testing.T) {
	s := New()
	seedToken(t, s, "tok-1", "sess-1")

	rt, err := s.Chains().GetByHash(context.Background(), "hash-tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if rt.ID != "tok-1" || rt.SessionID != "sess-1" {
		t.Fatalf("unexpected token: %+v", rt)
	}

	if _, err := s.Chains().GetByHash(context.Background(), "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRotateConditionalUpdate(t *testing.T) {
	s := New()
	seedToken(t, s, "tok-1", "sess-1")
	ctx := context.Background()

	ok, err := s.Chains().Rotate(ctx, "tok-1", repository.CreateRefreshTokenInput{
		ID: "tok-2", UserID: "u-1", TenantID: "school-a", SessionID: "sess-1",
		Role: "teacher", TokenHash: "hash-tok-2", TTL: time.Hour,
	})
	if err != nil || !ok {
		t.Fatalf("first rotation must win: ok=%v err=%v", ok, err)
	}

	// Segunda rotación del mismo eslabón: conflicto, sin error.
	ok, err = s.Chains().Rotate(ctx, "tok-1", repository.CreateRefreshTokenInput{
		ID: "tok-3", UserID: "u-1", SessionID: "sess-1", Role: "teacher",
		TokenHash: "hash-tok-3", TTL: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second rotation of the same link must report conflict")
	}

	// El perdedor no insertó sucesor.
	if _, found := s.TokenByID("tok-3"); found {
		t.Fatal("losing rotation must not insert its successor")
	}

	old, _ := s.TokenByID("tok-1")
	if old.RevokedAt == nil || old.RevokedReason != "rotated" || old.ReplacedByID == nil || *old.ReplacedByID != "tok-2" {
		t.Fatalf("old link state wrong: %+v", old)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	s := New()
	seedToken(t, s, "tok-1", "sess-1")

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Chains().Rotate(context.Background(), "tok-1", repository.CreateRefreshTokenInput{
				UserID: "u-1", SessionID: "sess-1", Role: "teacher",
				TokenHash: "hash-w", TTL: time.Hour,
			})
			if err == nil && ok {
				wins <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("exactly one rotation must win, got %d", count)
	}
}

func TestRotateExpiredLinkConflicts(t *testing.T) {
	s := New()
	err := s.Chains().Create(context.Background(), repository.CreateRefreshTokenInput{
		ID: "tok-exp", UserID: "u-1", SessionID: "sess-1", Role: "teacher",
		TokenHash: "hash-exp", TTL: -time.Minute, // nace vencido
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.Chains().Rotate(context.Background(), "tok-exp", repository.CreateRefreshTokenInput{
		TokenHash: "hash-next", UserID: "u-1", SessionID: "sess-1", Role: "teacher", TTL: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expired link must not rotate")
	}
}

func TestRevokeChain(t *testing.T) {
	s := New()
	seedToken(t, s, "tok-1", "sess-1")
	seedToken(t, s, "tok-2", "sess-1")
	seedToken(t, s, "tok-other", "sess-2")

	n, err := s.Chains().RevokeChain(context.Background(), "sess-1", "reuse_detected")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	other, _ := s.TokenByID("tok-other")
	if other.RevokedAt != nil {
		t.Fatal("unrelated session must stay active")
	}

	// Idempotente: segunda pasada no revoca nada.
	n, _ = s.Chains().RevokeChain(context.Background(), "sess-1", "again")
	if n != 0 {
		t.Fatalf("expected 0 on second pass, got %d", n)
	}
}

func TestRevokeAllByUser(t *testing.T) {
	s := New()
	seedToken(t, s, "tok-1", "sess-1")
	seedToken(t, s, "tok-2", "sess-2")

	n, err := s.Chains().RevokeAllByUser(context.Background(), "u-1", "admin_revoked")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}

func TestUserLookup(t *testing.T) {
	s := New()
	s.SeedUser(repository.User{ID: "u-1", TenantID: "school-a", Email: "ana@escuela-a.edu", Role: "teacher"})

	u, err := s.Users().GetByEmail(context.Background(), "ana@escuela-a.edu")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := s.Users().GetByEmail(context.Background(), "nadie@x.edu"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

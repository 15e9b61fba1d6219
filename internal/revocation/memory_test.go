package revocation

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAddContains(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Add(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected jti-1 to be revoked")
	}

	ok, err = s.Contains(ctx, "jti-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown jti must not read as revoked")
	}
}

func TestMemoryExpiredEntryIsNoop(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	// Un token ya vencido no necesita blacklist: la verificación de exp lo mata.
	if err := s.Add(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	ok, _ := s.Contains(ctx, "jti-old")
	if ok {
		t.Fatal("expired entry should not be stored")
	}
}

func TestMemoryEntryEvictsAtExpiry(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Add(ctx, "jti-short", time.Now().Add(30*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	ok, _ := s.Contains(ctx, "jti-short")
	if ok {
		t.Fatal("entry should expire with the token")
	}
}

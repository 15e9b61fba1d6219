package directory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

type countingRepo struct {
	calls  atomic.Int64
	status repository.TenantStatus
}

func (r *countingRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	r.calls.Add(1)
	if id == "missing" {
		return nil, repository.ErrNotFound
	}
	return &repository.Tenant{ID: id, Name: "x", Status: r.status}, nil
}

func TestStatusCachesLookups(t *testing.T) {
	repo := &countingRepo{status: repository.TenantActive}
	d := New(repo, time.Minute)

	for i := 0; i < 5; i++ {
		st, err := d.Status(context.Background(), "school-a")
		if err != nil {
			t.Fatal(err)
		}
		if st != repository.TenantActive {
			t.Fatalf("unexpected status: %s", st)
		}
	}
	if n := repo.calls.Load(); n != 1 {
		t.Fatalf("expected 1 repo call, got %d", n)
	}
}

func TestStatusNotFound(t *testing.T) {
	d := New(&countingRepo{}, time.Minute)
	_, err := d.Status(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := &countingRepo{status: repository.TenantActive}
	d := New(repo, time.Minute)

	if _, err := d.Status(context.Background(), "school-a"); err != nil {
		t.Fatal(err)
	}

	// Suspensión administrativa: invalidar fuerza relectura inmediata.
	repo.status = repository.TenantSuspended
	d.Invalidate("school-a")

	st, err := d.Status(context.Background(), "school-a")
	if err != nil {
		t.Fatal(err)
	}
	if st != repository.TenantSuspended {
		t.Fatalf("expected suspended after invalidate, got %s", st)
	}
	if n := repo.calls.Load(); n != 2 {
		t.Fatalf("expected 2 repo calls, got %d", n)
	}
}

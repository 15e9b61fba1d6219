package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

type tenantRepo struct {
	pool *pgxpool.Pool
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	const q = `SELECT id, name, status FROM tenants WHERE id = $1`
	var t repository.Tenant
	var status string
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get tenant: %w", err)
	}
	t.Status = repository.TenantStatus(status)
	return &t, nil
}

type userRepo struct {
	pool *pgxpool.Pool
}

const userCols = `id, COALESCE(tenant_id, ''), email, password_hash, role, disabled_at`

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (r *userRepo) get(ctx context.Context, q, arg string) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.DisabledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get user: %w", err)
	}
	return &u, nil
}

type studentRepo struct {
	pool *pgxpool.Pool
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*repository.Student, error) {
	const q = `SELECT id, tenant_id, full_name, grade FROM students WHERE id = $1`
	var st repository.Student
	err := r.pool.QueryRow(ctx, q, id).Scan(&st.ID, &st.TenantID, &st.FullName, &st.Grade)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get student: %w", err)
	}
	return &st, nil
}

func (r *studentRepo) Create(ctx context.Context, st repository.Student) error {
	const q = `INSERT INTO students (id, tenant_id, full_name, grade) VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, q, st.ID, st.TenantID, st.FullName, st.Grade); err != nil {
		return fmt.Errorf("pg: create student: %w", err)
	}
	return nil
}

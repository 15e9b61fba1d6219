package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

type chainRepo struct {
	pool *pgxpool.Pool
}

func (r *chainRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO refresh_tokens (id, user_id, tenant_id, session_id, role, token_hash, issuing_ip, issued_at, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NOW(), NOW() + $8::interval)`
	_, err := r.pool.Exec(ctx, q,
		in.ID, in.UserID, in.TenantID, in.SessionID, in.Role, in.TokenHash, in.IssuingIP, in.TTL.String())
	if err != nil {
		return fmt.Errorf("pg: create refresh token: %w", err)
	}
	return nil
}

func (r *chainRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const q = `
		SELECT id, user_id, COALESCE(tenant_id, ''), session_id, role, token_hash,
		       issued_at, expires_at, revoked_at, COALESCE(revoked_reason, ''), replaced_by, COALESCE(issuing_ip, '')
		FROM refresh_tokens
		WHERE token_hash = $1`
	var rt repository.RefreshToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(
		&rt.ID, &rt.UserID, &rt.TenantID, &rt.SessionID, &rt.Role, &rt.TokenHash,
		&rt.IssuedAt, &rt.ExpiresAt, &rt.RevokedAt, &rt.RevokedReason, &rt.ReplacedByID, &rt.IssuingIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get refresh token: %w", err)
	}
	return &rt, nil
}

// Rotate es el update condicional que cierra la ventana de replay: marca la
// punta como rotada SOLO si sigue activa, e inserta el sucesor en la misma
// transacción. Dos rotaciones concurrentes del mismo token: una ve la fila,
// la otra no (RowsAffected 0) y reporta conflicto.
func (r *chainRepo) Rotate(ctx context.Context, currentID string, successor repository.CreateRefreshTokenInput) (bool, error) {
	if successor.ID == "" {
		successor.ID = uuid.NewString()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("pg: rotate begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upd = `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = 'rotated', replaced_by = $2
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()`
	ct, err := tx.Exec(ctx, upd, currentID, successor.ID)
	if err != nil {
		return false, fmt.Errorf("pg: rotate update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Ya rotado/revocado/vencido: conflicto, no se inserta sucesor.
		return false, nil
	}

	const ins = `
		INSERT INTO refresh_tokens (id, user_id, tenant_id, session_id, role, token_hash, issuing_ip, issued_at, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NOW(), NOW() + $8::interval)`
	if _, err := tx.Exec(ctx, ins,
		successor.ID, successor.UserID, successor.TenantID, successor.SessionID,
		successor.Role, successor.TokenHash, successor.IssuingIP, successor.TTL.String()); err != nil {
		return false, fmt.Errorf("pg: rotate insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("pg: rotate commit: %w", err)
	}
	return true, nil
}

func (r *chainRepo) Revoke(ctx context.Context, tokenID, reason string) error {
	const q = `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.pool.Exec(ctx, q, tokenID, reason); err != nil {
		return fmt.Errorf("pg: revoke token: %w", err)
	}
	return nil
}

func (r *chainRepo) RevokeChain(ctx context.Context, sessionID, reason string) (int, error) {
	const q = `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE session_id = $1 AND revoked_at IS NULL`
	ct, err := r.pool.Exec(ctx, q, sessionID, reason)
	if err != nil {
		return 0, fmt.Errorf("pg: revoke chain: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *chainRepo) RevokeAllByUser(ctx context.Context, userID, reason string) (int, error) {
	const q = `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL`
	ct, err := r.pool.Exec(ctx, q, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("pg: revoke by user: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

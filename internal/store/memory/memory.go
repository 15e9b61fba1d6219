// Package memory implementa los repositorios del core en memoria.
// Espejo del adapter postgres para desarrollo y tests: misma semántica de
// rotación atómica, sin red.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

// Store agrupa los repositorios in-memory. Se accede vía Chains(), Tenants(),
// Users() y Students(), igual que el adapter postgres.
//
// Un RWMutex único serializa las mutaciones de TODAS las cadenas; suficiente
// acá porque el adapter real serializa por fila con el update condicional y
// este store solo corre en tests/dev.
type Store struct {
	mu       sync.RWMutex
	tokens   map[string]*repository.RefreshToken // por ID
	byHash   map[string]string                   // tokenHash → ID
	tenants  map[string]*repository.Tenant
	users    map[string]*repository.User
	byEmail  map[string]string // email → userID
	students map[string]*repository.Student
}

func New() *Store {
	return &Store{
		tokens:   make(map[string]*repository.RefreshToken),
		byHash:   make(map[string]string),
		tenants:  make(map[string]*repository.Tenant),
		users:    make(map[string]*repository.User),
		byEmail:  make(map[string]string),
		students: make(map[string]*repository.Student),
	}
}

func (s *Store) Chains() repository.RefreshChainRepository { return (*chainRepo)(s) }
func (s *Store) Tenants() repository.TenantRepository      { return (*tenantRepo)(s) }
func (s *Store) Users() repository.UserRepository          { return (*userRepo)(s) }
func (s *Store) Students() repository.StudentRepository    { return (*studentRepo)(s) }

// =================================================================================
// REFRESH CHAINS
// =================================================================================

type chainRepo Store

func (r *chainRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(in)
}

func (r *chainRepo) insertLocked(in repository.CreateRefreshTokenInput) error {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	rt := &repository.RefreshToken{
		ID:        id,
		UserID:    in.UserID,
		TenantID:  in.TenantID,
		SessionID: in.SessionID,
		Role:      in.Role,
		TokenHash: in.TokenHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(in.TTL),
		IssuingIP: in.IssuingIP,
	}
	r.tokens[id] = rt
	r.byHash[in.TokenHash] = id
	return nil
}

func (r *chainRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.tokens[id]
	return &cp, nil
}

func (r *chainRepo) Rotate(ctx context.Context, currentID string, successor repository.CreateRefreshTokenInput) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tokens[currentID]
	if !ok {
		return false, repository.ErrNotFound
	}
	// Update condicional: solo la punta activa puede rotar. Un segundo
	// rotador concurrente ve el eslabón ya rotado y recibe false.
	if !cur.Active(time.Now()) {
		return false, nil
	}
	if successor.ID == "" {
		successor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cur.RevokedAt = &now
	cur.RevokedReason = "rotated"
	sid := successor.ID
	cur.ReplacedByID = &sid

	if err := r.insertLocked(successor); err != nil {
		return false, err
	}
	return true, nil
}

func (r *chainRepo) Revoke(ctx context.Context, tokenID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
		rt.RevokedReason = reason
	}
	return nil
}

func (r *chainRepo) RevokeChain(ctx context.Context, sessionID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, rt := range r.tokens {
		if rt.SessionID == sessionID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
			rt.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

func (r *chainRepo) RevokeAllByUser(ctx context.Context, userID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, rt := range r.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
			rt.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

// =================================================================================
// TENANTS / USERS / STUDENTS
// =================================================================================

type tenantRepo Store

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type userRepo Store

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type studentRepo Store

func (r *studentRepo) GetByID(ctx context.Context, id string) (*repository.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *studentRepo) Create(ctx context.Context, st repository.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := st
	r.students[st.ID] = &cp
	return nil
}

// =================================================================================
// SEED HELPERS (dev/tests)
// =================================================================================

func (s *Store) SeedTenant(t repository.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.tenants[t.ID] = &cp
}

func (s *Store) SeedUser(u repository.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
	s.byEmail[u.Email] = u.ID
}

func (s *Store) SeedStudent(st repository.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := st
	s.students[st.ID] = &cp
}

// TokenByID expone un eslabón para asserts en tests.
func (s *Store) TokenByID(id string) (repository.RefreshToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.tokens[id]
	if !ok {
		return repository.RefreshToken{}, false
	}
	return *rt, true
}

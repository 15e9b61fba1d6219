// Package directory expone el estado de tenants con un cache corto.
// El status solo se consulta al login (nunca por request), pero los logins
// suelen llegar en ráfagas por colegio a la mañana: el cache + singleflight
// evitan martillar la tabla de tenants.
package directory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

// Directory resuelve el status de un tenant con cache TTL.
type Directory struct {
	repo repository.TenantRepository
	c    *gocache.Cache
	sf   singleflight.Group
}

// New crea un Directory. ttl acota la ventana en que una suspensión tarda en
// verse al login; 0 usa 60s.
func New(repo repository.TenantRepository, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Directory{
		repo: repo,
		c:    gocache.New(ttl, 5*time.Minute),
	}
}

// Status devuelve el status del tenant. repository.ErrNotFound si no existe.
func (d *Directory) Status(ctx context.Context, tenantID string) (repository.TenantStatus, error) {
	if v, ok := d.c.Get(tenantID); ok {
		return v.(repository.TenantStatus), nil
	}

	// singleflight colapsa lookups concurrentes del mismo tenant.
	v, err, _ := d.sf.Do(tenantID, func() (any, error) {
		t, err := d.repo.GetByID(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		d.c.SetDefault(tenantID, t.Status)
		return t.Status, nil
	})
	if err != nil {
		return "", err
	}
	return v.(repository.TenantStatus), nil
}

// Invalidate fuerza una relectura en el próximo login (suspensión administrativa).
func (d *Directory) Invalidate(tenantID string) {
	d.c.Delete(tenantID)
}

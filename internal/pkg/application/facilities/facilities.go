package facilities

import (
	"context"
	"fmt"

	"github.com/diwise/halgraph/internal/pkg/infrastructure/storage"
	api "github.com/diwise/halgraph/pkg/api/facilities"
	"github.com/diwise/halgraph/pkg/client"
	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/rendering"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const MaxPageSize int = 100

type CollectionQuery struct {
	Category string
	Offset   int
	Limit    int
}

//go:generate moq -rm -out facilities_mock.go . App

// App serves the facilities resources of every configured tenant.
type App interface {
	EntryPoint(ctx context.Context, tenant string) (api.EntryPoint, error)
	Collection(ctx context.Context, tenant string, q CollectionQuery) (api.FacilityCollection, error)
	Facility(ctx context.Context, tenant, id string) (api.Facility, error)
}

type facilitiesApp struct {
	name          string
	version       string
	tenants       map[string]Tenant
	store         storage.Store
	registry      *resources.Registry
	renderer      *rendering.Renderer
	clientOptions []client.Option
}

type Option func(*facilitiesApp)

func WithVersion(version string) Option {
	return func(a *facilitiesApp) {
		a.version = version
	}
}

// WithClientOptions configures the clients used to reach upstream services.
func WithClientOptions(options ...client.Option) Option {
	return func(a *facilitiesApp) {
		a.clientOptions = append(a.clientOptions, options...)
	}
}

// New creates the application and seeds store with the facilities found in
// the configuration.
func New(ctx context.Context, cfg Config, store storage.Store, registry *resources.Registry, options ...Option) (App, error) {
	app := &facilitiesApp{
		name:     cfg.Name,
		tenants:  make(map[string]Tenant),
		store:    store,
		registry: registry,
		renderer: rendering.NewRenderer(registry),
	}

	if app.name == "" {
		app.name = "facilities-api"
	}

	for _, option := range options {
		option(app)
	}

	log := logging.GetFromContext(ctx)

	for _, tenant := range cfg.Tenants {
		app.tenants[tenant.ID] = tenant

		for _, fc := range tenant.Facilities {
			err := store.Upsert(ctx, tenant.ID, toStorage(fc))
			if err != nil {
				return nil, fmt.Errorf("failed to seed facility %s for tenant %s: %w", fc.ID, tenant.ID, err)
			}
		}

		log.Info("tenant configured", "tenant", tenant.ID, "facilities", len(tenant.Facilities), "upstreams", len(tenant.Upstreams))
	}

	return app, nil
}

func (a *facilitiesApp) tenant(id string) (Tenant, error) {
	t, ok := a.tenants[id]
	if !ok {
		return Tenant{}, errors.NewNotFoundError(fmt.Sprintf("unknown tenant %s", id))
	}
	return t, nil
}

func (a *facilitiesApp) EntryPoint(ctx context.Context, tenant string) (api.EntryPoint, error) {
	t, err := a.tenant(tenant)
	if err != nil {
		return nil, err
	}

	return &entryPoint{app: a, tenant: t}, nil
}

func (a *facilitiesApp) Collection(ctx context.Context, tenant string, q CollectionQuery) (api.FacilityCollection, error) {
	t, err := a.tenant(tenant)
	if err != nil {
		return nil, err
	}

	return a.newCollection(t, q), nil
}

func (a *facilitiesApp) Facility(ctx context.Context, tenant, id string) (api.Facility, error) {
	t, err := a.tenant(tenant)
	if err != nil {
		return nil, err
	}

	f, err := a.store.Get(ctx, t.ID, id)
	if err != nil {
		return nil, err
	}

	return &facility{app: a, tenant: t, f: f}, nil
}

func (a *facilitiesApp) newCollection(t Tenant, q CollectionQuery) *collection {
	if q.Offset < 0 {
		q.Offset = 0
	}

	if q.Limit <= 0 {
		q.Limit = t.PageSize
	}

	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}

	q.Limit = min(q.Limit, MaxPageSize)

	return &collection{app: a, tenant: t, query: q}
}

// upstreamClient returns a new client for u. Each request gets its own
// client so that fetched upstream documents are never served stale.
func (a *facilitiesApp) upstreamClient(u UpstreamConfig) *client.Client {
	options := append([]client.Option{client.WithHeader(api.TenantHeader, u.Tenant)}, a.clientOptions...)
	return client.New(a.registry, options...)
}

func toStorage(fc FacilityConfig) storage.Facility {
	f := storage.Facility{
		ID:          fc.ID,
		Name:        fc.Name,
		Category:    fc.Category,
		Description: fc.Description,
		SeeAlso:     fc.SeeAlso,
	}

	if fc.Location != nil {
		lat, lon := fc.Location.Latitude, fc.Location.Longitude
		f.Latitude = &lat
		f.Longitude = &lon
	}

	return f
}

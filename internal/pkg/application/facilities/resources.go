package facilities

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"sync"

	"github.com/diwise/halgraph/internal/pkg/infrastructure/storage"
	api "github.com/diwise/halgraph/pkg/api/facilities"
	"github.com/diwise/halgraph/pkg/client"
	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"golang.org/x/sync/errgroup"
)

const (
	EntryPointPath string = "/api"
	FacilitiesPath string = "/api/facilities"
)

func entryPointLink() hal.Link {
	return hal.NewLink(EntryPointPath)
}

func collectionLink(q CollectionQuery) hal.Link {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))

	return hal.NewLink(FacilitiesPath + "?" + params.Encode())
}

func facilityLink(f storage.Facility) hal.Link {
	return hal.NewLink(FacilitiesPath+"/"+url.PathEscape(f.ID), hal.Title(f.Name))
}

func linkTo(l hal.Link) (*hal.Link, error) {
	return &l, nil
}

type entryPoint struct {
	app    *facilitiesApp
	tenant Tenant
}

func (ep *entryPoint) Info(ctx context.Context) (api.ServiceInfo, error) {
	return api.ServiceInfo{
		Name:    ep.app.name,
		Version: ep.app.version,
		Tenant:  ep.tenant.ID,
	}, nil
}

func (ep *entryPoint) Facilities(ctx context.Context) (api.FacilityCollection, error) {
	return ep.app.newCollection(ep.tenant, CollectionQuery{}), nil
}

func (ep *entryPoint) Search(ctx context.Context, category *string) (api.FacilityCollection, error) {
	if category == nil {
		return searchTemplate{}, nil
	}

	return ep.app.newCollection(ep.tenant, CollectionQuery{Category: *category}), nil
}

func (ep *entryPoint) Facility(ctx context.Context, id *string) (resources.Optional[api.Facility], error) {
	if id == nil {
		return resources.Some[api.Facility](facilityTemplate{}), nil
	}

	f, err := ep.app.Facility(ctx, ep.tenant.ID, *id)
	if err != nil {
		if errors.IsNotFound(err) {
			return resources.None[api.Facility](), nil
		}
		return resources.None[api.Facility](), err
	}

	return resources.Some(f), nil
}

// Upstreams links to the entry points of the upstream services. Nothing is
// fetched until someone follows them.
func (ep *entryPoint) Upstreams(ctx context.Context) ([]api.EntryPoint, error) {
	upstreams := make([]api.EntryPoint, 0, len(ep.tenant.Upstreams))

	for _, u := range ep.tenant.Upstreams {
		upstream, err := client.GetEntryPoint[api.EntryPoint](ep.app.upstreamClient(u), u.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream %s: %w", u.Endpoint, err)
		}
		upstreams = append(upstreams, upstream)
	}

	return upstreams, nil
}

func (ep *entryPoint) Self(ctx context.Context) (hal.Link, error) {
	return entryPointLink(), nil
}

func (ep *entryPoint) CreateLink(ctx context.Context) (*hal.Link, error) {
	return linkTo(entryPointLink())
}

type page struct {
	facilities []storage.Facility
	total      int
}

type collection struct {
	app    *facilitiesApp
	tenant Tenant
	query  CollectionQuery

	mu     sync.Mutex
	loaded *page
}

// load queries the store once per collection, failed queries are retried on
// the next call.
func (c *collection) load(ctx context.Context) (*page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded != nil {
		return c.loaded, nil
	}

	facilities, total, err := c.app.store.Query(ctx, c.tenant.ID, storage.Query{
		Category: c.query.Category,
		Offset:   c.query.Offset,
		Limit:    c.query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}

	c.loaded = &page{facilities: facilities, total: total}
	return c.loaded, nil
}

func (c *collection) Info(ctx context.Context) (api.CollectionInfo, error) {
	p, err := c.load(ctx)
	if err != nil {
		return api.CollectionInfo{}, err
	}

	return api.CollectionInfo{
		Count:    len(p.facilities),
		Total:    p.total,
		Offset:   c.query.Offset,
		Limit:    c.query.Limit,
		Category: c.query.Category,
	}, nil
}

func (c *collection) Items(ctx context.Context) (iter.Seq2[api.Facility, error], error) {
	p, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	return func(yield func(api.Facility, error) bool) {
		for _, f := range p.facilities {
			item := &facility{
				Embedding: resources.Embedding{Embedded: true},
				app:       c.app,
				tenant:    c.tenant,
				f:         f,
			}
			if !yield(item, nil) {
				return
			}
		}
	}, nil
}

func (c *collection) Next(ctx context.Context) (resources.Optional[api.FacilityCollection], error) {
	p, err := c.load(ctx)
	if err != nil {
		return resources.None[api.FacilityCollection](), err
	}

	next := c.query.Offset + c.query.Limit
	if next >= p.total {
		return resources.None[api.FacilityCollection](), nil
	}

	q := c.query
	q.Offset = next

	return resources.Some[api.FacilityCollection](c.app.newCollection(c.tenant, q)), nil
}

func (c *collection) Prev(ctx context.Context) (resources.Optional[api.FacilityCollection], error) {
	if c.query.Offset == 0 {
		return resources.None[api.FacilityCollection](), nil
	}

	q := c.query
	q.Offset = max(0, c.query.Offset-c.query.Limit)

	return resources.Some[api.FacilityCollection](c.app.newCollection(c.tenant, q)), nil
}

// Upstreams follows every upstream entry point to the collection matching
// this one. Only the first page refers to the upstream collections.
func (c *collection) Upstreams(ctx context.Context) ([]api.FacilityCollection, error) {
	if c.query.Offset > 0 || len(c.tenant.Upstreams) == 0 {
		return nil, nil
	}

	log := logging.GetFromContext(ctx)

	collections := make([]api.FacilityCollection, len(c.tenant.Upstreams))
	g, gctx := errgroup.WithContext(ctx)

	for i, u := range c.tenant.Upstreams {
		g.Go(func() error {
			ep, err := client.GetEntryPoint[api.EntryPoint](c.app.upstreamClient(u), u.Endpoint)
			if err != nil {
				return fmt.Errorf("invalid upstream %s: %w", u.Endpoint, err)
			}

			var upstream api.FacilityCollection
			if c.query.Category != "" {
				upstream, err = ep.Search(gctx, &c.query.Category)
			} else {
				upstream, err = ep.Facilities(gctx)
			}

			if err != nil {
				log.Warn("upstream collection unavailable", "upstream", u.Endpoint, "err", err.Error())
				return fmt.Errorf("upstream %s: %w", u.Endpoint, err)
			}

			collections[i] = upstream
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return collections, nil
}

func (c *collection) Self(ctx context.Context) (hal.Link, error) {
	return collectionLink(c.query), nil
}

func (c *collection) CreateLink(ctx context.Context) (*hal.Link, error) {
	return linkTo(collectionLink(c.query))
}

type facility struct {
	resources.Embedding

	app    *facilitiesApp
	tenant Tenant
	f      storage.Facility
}

func (f *facility) Info(ctx context.Context) (api.FacilityInfo, error) {
	info := api.FacilityInfo{
		ID:          f.f.ID,
		Name:        f.f.Name,
		Category:    f.f.Category,
		Description: f.f.Description,
	}

	if f.f.Latitude != nil && f.f.Longitude != nil {
		info.Location = &api.Location{Latitude: *f.f.Latitude, Longitude: *f.f.Longitude}
	}

	if !f.f.DateModified.IsZero() {
		modified := f.f.DateModified.UTC()
		info.DateModified = &modified
	}

	return info, nil
}

func (f *facility) Collection(ctx context.Context) (api.FacilityCollection, error) {
	return f.app.newCollection(f.tenant, CollectionQuery{Category: f.f.Category}), nil
}

func (f *facility) Alternate(ctx context.Context) ([]hal.Link, error) {
	links := make([]hal.Link, 0, len(f.f.SeeAlso))
	for _, href := range f.f.SeeAlso {
		links = append(links, hal.NewLink(href))
	}
	return links, nil
}

func (f *facility) Self(ctx context.Context) (hal.Link, error) {
	return facilityLink(f.f), nil
}

func (f *facility) CreateLink(ctx context.Context) (*hal.Link, error) {
	return linkTo(facilityLink(f.f))
}

func (f *facility) Document(ctx context.Context) (*hal.Document, error) {
	return f.app.renderer.Render(ctx, f)
}

// searchTemplate and facilityTemplate stand in for resources that are
// addressed by template variables. They only ever contribute their link.
type searchTemplate struct{ api.FacilityCollection }

func (searchTemplate) CreateLink(ctx context.Context) (*hal.Link, error) {
	return linkTo(hal.NewLink(FacilitiesPath + "{?category}"))
}

type facilityTemplate struct{ api.Facility }

func (facilityTemplate) CreateLink(ctx context.Context) (*hal.Link, error) {
	return linkTo(hal.NewLink(FacilitiesPath + "/{id}"))
}

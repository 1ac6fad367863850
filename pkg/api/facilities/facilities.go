// Package facilities is the resource contract of the facilities API. Servers
// implement these interfaces and render them, clients navigate them through
// the proxies registered by Declare.
package facilities

import (
	"context"
	"iter"
	"time"

	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
)

const (
	RelFacilities string = "facilities"
	RelFacility   string = "facility"
	RelSearch     string = "search"
	RelCollection string = "collection"
	RelAlternate  string = "alternate"
	RelUpstream   string = "diwise:upstream"
)

// TenantHeader selects the tenant whose facilities a request concerns.
const TenantHeader string = "Diwise-Tenant"

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Tenant  string `json:"tenant,omitempty"`
}

type FacilityInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Description  string     `json:"description,omitempty"`
	Location     *Location  `json:"location,omitempty"`
	DateModified *time.Time `json:"dateModified,omitempty"`
}

type CollectionInfo struct {
	Count    int    `json:"count"`
	Total    int    `json:"total"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	Category string `json:"category,omitempty"`
}

// EntryPoint is the root resource of a facilities service.
type EntryPoint interface {
	Info(ctx context.Context) (ServiceInfo, error)
	Facilities(ctx context.Context) (FacilityCollection, error)
	Search(ctx context.Context, category *string) (FacilityCollection, error)
	Facility(ctx context.Context, id *string) (resources.Optional[Facility], error)
	Upstreams(ctx context.Context) ([]EntryPoint, error)
	Self(ctx context.Context) (hal.Link, error)
}

// FacilityCollection is one page of facilities. Collections of upstream
// services are reachable through Upstreams.
type FacilityCollection interface {
	Info(ctx context.Context) (CollectionInfo, error)
	Items(ctx context.Context) (iter.Seq2[Facility, error], error)
	Next(ctx context.Context) (resources.Optional[FacilityCollection], error)
	Prev(ctx context.Context) (resources.Optional[FacilityCollection], error)
	Upstreams(ctx context.Context) ([]FacilityCollection, error)
	Self(ctx context.Context) (hal.Link, error)
}

type Facility interface {
	Info(ctx context.Context) (FacilityInfo, error)
	Collection(ctx context.Context) (FacilityCollection, error)
	Alternate(ctx context.Context) ([]hal.Link, error)
	Self(ctx context.Context) (hal.Link, error)
	Document(ctx context.Context) (*hal.Document, error)
}

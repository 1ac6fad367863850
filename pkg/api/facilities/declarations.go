package facilities

import (
	"context"
	"iter"

	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
)

// Declare registers the facilities resource interfaces with reg.
func Declare(reg *resources.Registry) error {
	err := resources.Declare[EntryPoint](reg,
		resources.State("Info"),
		resources.Related(RelFacilities, "Facilities"),
		resources.Related(RelSearch, "Search", resources.Var("category")),
		resources.Related(RelFacility, "Facility", resources.Var("id")),
		resources.Related(RelUpstream, "Upstreams"),
		resources.SelfLink("Self"),
		resources.Proxy(func(r resources.Remote) EntryPoint { return entryPointProxy{r} }),
	)
	if err != nil {
		return err
	}

	err = resources.Declare[FacilityCollection](reg,
		resources.State("Info"),
		resources.Related(hal.RelItem, "Items"),
		resources.Related(hal.RelNext, "Next"),
		resources.Related(hal.RelPrev, "Prev"),
		resources.Related(RelUpstream, "Upstreams"),
		resources.SelfLink("Self"),
		resources.Proxy(func(r resources.Remote) FacilityCollection { return collectionProxy{r} }),
	)
	if err != nil {
		return err
	}

	return resources.Declare[Facility](reg,
		resources.State("Info"),
		resources.Related(RelCollection, "Collection"),
		resources.Related(RelAlternate, "Alternate"),
		resources.SelfLink("Self"),
		resources.Representation("Document"),
		resources.Proxy(func(r resources.Remote) Facility { return facilityProxy{r} }),
	)
}

func NewRegistry() (*resources.Registry, error) {
	reg := resources.NewRegistry()
	if err := Declare(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

type entryPointProxy struct{ resources.Remote }

func (p entryPointProxy) Info(ctx context.Context) (ServiceInfo, error) {
	return resources.Call[ServiceInfo](ctx, p, "Info")
}

func (p entryPointProxy) Facilities(ctx context.Context) (FacilityCollection, error) {
	return resources.Call[FacilityCollection](ctx, p, "Facilities")
}

func (p entryPointProxy) Search(ctx context.Context, category *string) (FacilityCollection, error) {
	return resources.Call[FacilityCollection](ctx, p, "Search", category)
}

func (p entryPointProxy) Facility(ctx context.Context, id *string) (resources.Optional[Facility], error) {
	return resources.Call[resources.Optional[Facility]](ctx, p, "Facility", id)
}

func (p entryPointProxy) Upstreams(ctx context.Context) ([]EntryPoint, error) {
	return resources.Call[[]EntryPoint](ctx, p, "Upstreams")
}

func (p entryPointProxy) Self(ctx context.Context) (hal.Link, error) {
	return resources.Call[hal.Link](ctx, p, "Self")
}

type collectionProxy struct{ resources.Remote }

func (p collectionProxy) Info(ctx context.Context) (CollectionInfo, error) {
	return resources.Call[CollectionInfo](ctx, p, "Info")
}

func (p collectionProxy) Items(ctx context.Context) (iter.Seq2[Facility, error], error) {
	return resources.Call[iter.Seq2[Facility, error]](ctx, p, "Items")
}

func (p collectionProxy) Next(ctx context.Context) (resources.Optional[FacilityCollection], error) {
	return resources.Call[resources.Optional[FacilityCollection]](ctx, p, "Next")
}

func (p collectionProxy) Prev(ctx context.Context) (resources.Optional[FacilityCollection], error) {
	return resources.Call[resources.Optional[FacilityCollection]](ctx, p, "Prev")
}

func (p collectionProxy) Upstreams(ctx context.Context) ([]FacilityCollection, error) {
	return resources.Call[[]FacilityCollection](ctx, p, "Upstreams")
}

func (p collectionProxy) Self(ctx context.Context) (hal.Link, error) {
	return resources.Call[hal.Link](ctx, p, "Self")
}

type facilityProxy struct{ resources.Remote }

func (p facilityProxy) Info(ctx context.Context) (FacilityInfo, error) {
	return resources.Call[FacilityInfo](ctx, p, "Info")
}

func (p facilityProxy) Collection(ctx context.Context) (FacilityCollection, error) {
	return resources.Call[FacilityCollection](ctx, p, "Collection")
}

func (p facilityProxy) Alternate(ctx context.Context) ([]hal.Link, error) {
	return resources.Call[[]hal.Link](ctx, p, "Alternate")
}

func (p facilityProxy) Self(ctx context.Context) (hal.Link, error) {
	return resources.Call[hal.Link](ctx, p, "Self")
}

func (p facilityProxy) Document(ctx context.Context) (*hal.Document, error) {
	return resources.Call[*hal.Document](ctx, p, "Document")
}

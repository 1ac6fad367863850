package rendering

import (
	"context"
	"fmt"
	"reflect"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	TraceAttributeResourceType string = "resource-type"
)

var tracer = otel.Tracer("halgraph-rendering")

// Renderer turns implementations of declared resource interfaces into HAL
// documents.
type Renderer struct {
	registry *resources.Registry
}

func NewRenderer(registry *resources.Registry) *Renderer {
	return &Renderer{registry: registry}
}

func (r *Renderer) Render(ctx context.Context, impl any) (doc *hal.Document, err error) {
	ctx, span := tracer.Start(ctx, "render-resource",
		trace.WithAttributes(attribute.String(TraceAttributeResourceType, fmt.Sprintf("%T", impl))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	doc, err = r.render(ctx, impl)
	return
}

type contribution struct {
	links    []hal.Link
	embedded []*hal.Document
}

func (r *Renderer) render(ctx context.Context, impl any) (*hal.Document, error) {
	d, err := r.registry.DescriptorOf(impl)
	if err != nil {
		return nil, err
	}

	decorators := []hal.DocumentDecoratorFunc{}

	if d.State != nil {
		items, err := resources.Emit(ctx, impl, d.State)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Interface, d.State.Name, err)
		}

		if len(items) > 0 {
			state, err := hal.StateFrom(items[0])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", d.Interface, d.State.Name, err)
			}
			decorators = append(decorators, hal.State(state))
		}
	}

	contributions := make([]contribution, len(d.Related))

	g, gctx := errgroup.WithContext(ctx)

	for i, m := range d.Related {
		g.Go(func() error {
			items, err := resources.Emit(gctx, impl, m)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", d.Interface, m.Name, err)
			}

			c, err := r.contribute(gctx, items)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", d.Interface, m.Name, err)
			}

			contributions[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	self, err := r.selfLink(ctx, impl, d)
	if err != nil {
		return nil, err
	}

	if self != nil {
		decorators = append(decorators, hal.Self(*self))
	}

	for i, m := range d.Related {
		c := contributions[i]
		if len(c.links) > 0 {
			decorators = append(decorators, hal.Links(m.Relation, c.links...))
		}
		if len(c.embedded) > 0 {
			decorators = append(decorators, hal.Embedded(m.Relation, c.embedded...))
		}
	}

	return hal.NewDocument(decorators...), nil
}

// contribute classifies the emitted items of one relation. Links are taken
// as is, embedded resources are rendered recursively and everything else
// that is linkable contributes its link.
func (r *Renderer) contribute(ctx context.Context, items []any) (contribution, error) {
	c := contribution{}

	for _, item := range items {
		if l, ok := item.(hal.Link); ok {
			c.links = append(c.links, l)
			continue
		}

		embeddable, isEmbeddable := item.(resources.EmbeddableResource)
		linkable, isLinkable := item.(resources.LinkableResource)

		if isEmbeddable && embeddable.IsEmbedded() {
			doc, err := r.render(ctx, item)
			if err != nil {
				return c, err
			}
			c.embedded = append(c.embedded, doc)

			if embeddable.SuppressLinkWhenEmbedded() || !isLinkable {
				continue
			}
		} else if !isLinkable {
			return c, errors.NewContractError("%T is neither linkable nor embedded", item)
		}

		l, err := createLink(ctx, linkable)
		if err != nil {
			return c, err
		}
		c.links = append(c.links, *l)
	}

	return c, nil
}

func (r *Renderer) selfLink(ctx context.Context, impl any, d *resources.Descriptor) (*hal.Link, error) {
	if linkable, ok := impl.(resources.LinkableResource); ok {
		return createLink(ctx, linkable)
	}

	if d.SelfLink == nil {
		return nil, nil
	}

	items, err := resources.Emit(ctx, impl, d.SelfLink)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", d.Interface, d.SelfLink.Name, err)
	}

	if len(items) == 0 {
		return nil, errors.NewContractError("%s.%s returned no self link", d.Interface, d.SelfLink.Name)
	}

	switch self := items[0].(type) {
	case hal.Link:
		return &self, nil
	case string:
		l := hal.NewLink(self)
		return &l, nil
	}

	return nil, errors.NewContractError("unexpected self link of type %s", reflect.TypeOf(items[0]))
}

func createLink(ctx context.Context, linkable resources.LinkableResource) (*hal.Link, error) {
	l, err := linkable.CreateLink(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create link for %T: %w", linkable, err)
	}

	if l == nil {
		return nil, errors.NewContractError("%T returned a nil link", linkable)
	}

	return l, nil
}

package rendering

import (
	"context"
	"fmt"
	"net/http"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
)

// StatusClassifier maps an error to a HTTP status code. It returns false
// when it has no opinion about the error.
type StatusClassifier func(err error) (int, bool)

// DefaultStatusClassifier answers 502 for failing upstream resources and
// maps the not found and forbidden error kinds to their status codes.
func DefaultStatusClassifier(err error) (int, bool) {
	switch {
	case errors.IsTransportError(err):
		return http.StatusBadGateway, true
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden, true
	}
	return 0, false
}

type ErrorRenderer struct {
	classifiers []StatusClassifier
}

type ErrorRendererOption func(*ErrorRenderer)

// WithStatusClassifier adds a classifier that is consulted before the ones
// already configured.
func WithStatusClassifier(classifier StatusClassifier) ErrorRendererOption {
	return func(r *ErrorRenderer) {
		r.classifiers = append([]StatusClassifier{classifier}, r.classifiers...)
	}
}

func NewErrorRenderer(options ...ErrorRendererOption) *ErrorRenderer {
	r := &ErrorRenderer{
		classifiers: []StatusClassifier{DefaultStatusClassifier},
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Status classifies err, defaulting to 500.
func (r *ErrorRenderer) Status(err error) int {
	for _, classify := range r.classifiers {
		if code, ok := classify(err); ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Render builds a vnd.error document for err raised while rendering impl
// (which may be nil) in response to requestURI. Every cause in the chain of
// err gets its own embedded error document. Error documents received from
// upstream services are spliced into that list right after the error that
// carried them.
func (r *ErrorRenderer) Render(ctx context.Context, requestURI string, impl any, err error) *hal.Document {
	decorators := []hal.DocumentDecoratorFunc{
		hal.Property("message", err.Error()),
		hal.Property("class", fmt.Sprintf("%T", err)),
		hal.Property("title", http.StatusText(r.Status(err))),
		hal.Links(hal.RelAbout, hal.NewLink(requestURI)),
	}

	if canonical := canonicalLink(ctx, impl); canonical != nil && canonical.Href != requestURI {
		decorators = append(decorators, hal.Links(hal.RelCanonical, *canonical))
	}

	var causes []*hal.Document

	if te, ok := err.(*errors.TransportError); ok {
		decorators = append(decorators, hal.Links(hal.RelVia, hal.NewLink(te.URI)))
		causes = append(causes, upstreamCauses(te)...)
	}

	causes = append(causes, r.causes(err)...)

	if len(causes) > 0 {
		decorators = append(decorators, hal.Embedded(hal.RelErrors, causes...))
	}

	return hal.NewDocument(decorators...)
}

func (r *ErrorRenderer) causes(err error) []*hal.Document {
	var docs []*hal.Document

	for _, cause := range unwrap(err) {
		docs = append(docs, causeDocument(cause))

		if te, ok := cause.(*errors.TransportError); ok {
			docs = append(docs, upstreamCauses(te)...)
		}

		docs = append(docs, r.causes(cause)...)
	}

	return docs
}

func unwrap(err error) []error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if cause := u.Unwrap(); cause != nil {
			return []error{cause}
		}
	case interface{ Unwrap() []error }:
		return u.Unwrap()
	}
	return nil
}

func causeDocument(cause error) *hal.Document {
	decorators := []hal.DocumentDecoratorFunc{
		hal.Property("message", cause.Error()),
		hal.Property("class", fmt.Sprintf("%T", cause)),
	}

	if te, ok := cause.(*errors.TransportError); ok {
		decorators = append(decorators, hal.Links(hal.RelVia, hal.NewLink(te.URI)))
	}

	return hal.NewDocument(decorators...)
}

// upstreamCauses flattens the embedded error chain of an upstream error
// document, depth first.
func upstreamCauses(te *errors.TransportError) []*hal.Document {
	if te.Body == nil {
		return nil
	}
	return flatten(te.Body.Embedded(hal.RelErrors))
}

func flatten(docs []*hal.Document) []*hal.Document {
	var flat []*hal.Document

	for _, d := range docs {
		flat = append(flat, withoutCauses(d))
		flat = append(flat, flatten(d.Embedded(hal.RelErrors))...)
	}

	return flat
}

func withoutCauses(d *hal.Document) *hal.Document {
	decorators := []hal.DocumentDecoratorFunc{hal.State(d.State())}

	if self := d.SelfLink(); self != nil {
		decorators = append(decorators, hal.Self(*self))
	}

	for _, rel := range d.LinkRelations() {
		if rel != hal.RelSelf {
			decorators = append(decorators, hal.Links(rel, d.Links(rel)...))
		}
	}

	for _, rel := range d.EmbeddedRelations() {
		if rel != hal.RelErrors {
			decorators = append(decorators, hal.Embedded(rel, d.Embedded(rel)...))
		}
	}

	return hal.NewDocument(decorators...)
}

// canonicalLink returns the self link of impl, if one can be produced.
// Failures are ignored since an error is already being reported.
func canonicalLink(ctx context.Context, impl any) *hal.Link {
	linkable, ok := impl.(resources.LinkableResource)
	if !ok {
		return nil
	}

	l, err := linkable.CreateLink(ctx)
	if err != nil {
		return nil
	}

	return l
}

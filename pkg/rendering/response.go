package rendering

import (
	"context"
	"net/http"

	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type Response struct {
	Status      int
	ContentType string
	Document    *hal.Document
}

// ResponseRenderer renders resources into complete responses, turning
// rendering failures into error documents.
type ResponseRenderer struct {
	renderer *Renderer
	errors   *ErrorRenderer
}

func NewResponseRenderer(registry *resources.Registry, options ...ErrorRendererOption) *ResponseRenderer {
	return &ResponseRenderer{
		renderer: NewRenderer(registry),
		errors:   NewErrorRenderer(options...),
	}
}

func (r *ResponseRenderer) RenderResponse(ctx context.Context, requestURI string, impl any) Response {
	doc, err := r.renderer.Render(ctx, impl)
	if err != nil {
		return r.RenderError(ctx, requestURI, impl, err)
	}

	return Response{
		Status:      http.StatusOK,
		ContentType: hal.ContentType,
		Document:    doc,
	}
}

func (r *ResponseRenderer) RenderError(ctx context.Context, requestURI string, impl any, err error) Response {
	status := r.errors.Status(err)

	log := logging.GetFromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("failed to render resource", "uri", requestURI, "status", status, "err", err.Error())
	} else {
		log.Debug("resource could not be rendered", "uri", requestURI, "status", status, "err", err.Error())
	}

	return Response{
		Status:      status,
		ContentType: hal.ErrorContentType,
		Document:    r.errors.Render(ctx, requestURI, impl, err),
	}
}

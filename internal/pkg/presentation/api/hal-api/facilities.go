package halapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diwise/halgraph/internal/pkg/application/facilities"
	"github.com/diwise/halgraph/internal/pkg/presentation/api/hal-api/auth"
	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/rendering"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("halgraph/hal-api/facilities")

func NewRetrieveEntryPointHandler(app facilities.App, authenticator auth.Enticator, renderer *rendering.ResponseRenderer) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-entry-point")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		tenant := GetTenantFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, tenant)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		ep, err := app.EntryPoint(ctx, tenant)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		writeResponse(ctx, w, r, renderer.RenderResponse(ctx, r.URL.RequestURI(), ep))
	})
}

func NewQueryFacilitiesHandler(app facilities.App, authenticator auth.Enticator, renderer *rendering.ResponseRenderer) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "query-facilities")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		tenant := GetTenantFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, tenant)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		params := r.URL.Query()

		q := facilities.CollectionQuery{
			Category: params.Get("category"),
		}

		q.Offset, err = intParam(params, "offset")
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		q.Limit, err = intParam(params, "limit")
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		coll, err := app.Collection(ctx, tenant, q)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		response := renderer.RenderResponse(ctx, r.URL.RequestURI(), coll)
		if response.Status != http.StatusOK {
			err = fmt.Errorf("failed to render facilities (status code %d)", response.Status)
		}

		writeResponse(ctx, w, r, response)
	})
}

func NewRetrieveFacilityHandler(app facilities.App, authenticator auth.Enticator, renderer *rendering.ResponseRenderer) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-facility")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		tenant := GetTenantFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, tenant)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		id, err := url.PathUnescape(chi.URLParam(r, "id"))
		if err != nil {
			writeError(ctx, w, r, renderer, nil, fmt.Errorf("malformed facility id: %w", errors.ErrRequest))
			return
		}

		f, err := app.Facility(ctx, tenant, id)
		if err != nil {
			writeError(ctx, w, r, renderer, nil, err)
			return
		}

		writeResponse(ctx, w, r, renderer.RenderResponse(ctx, r.URL.RequestURI(), f))
	})
}

func intParam(params url.Values, name string) (int, error) {
	value := params.Get(name)
	if value == "" {
		return 0, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("query parameter %s must be a non negative integer, got %q: %w", name, value, errors.ErrRequest)
	}

	return i, nil
}

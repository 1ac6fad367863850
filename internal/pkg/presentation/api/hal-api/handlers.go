package halapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/diwise/halgraph/internal/pkg/application/facilities"
	"github.com/diwise/halgraph/internal/pkg/presentation/api/hal-api/auth"
	api "github.com/diwise/halgraph/pkg/api/facilities"
	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/rendering"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/munnerz/goautoneg"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeTenant string = "tenant"

	DefaultTenant   string = "default"
	JSONContentType string = "application/json"
)

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app facilities.App, registry *resources.Registry) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	renderer := rendering.NewResponseRenderer(registry,
		rendering.WithStatusClassifier(requestErrorClassifier),
	)

	r.Route(facilities.EntryPointPath, func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			TenantMiddleware(),
		)

		r.Get("/", NewRetrieveEntryPointHandler(app, authenticator, renderer))

		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", NewQueryFacilitiesHandler(app, authenticator, renderer))
			r.Get("/{id}", NewRetrieveFacilityHandler(app, authenticator, renderer))
		})
	})

	return nil
}

func requestErrorClassifier(err error) (int, bool) {
	if errors.Is(err, errors.ErrRequest) {
		return http.StatusBadRequest, true
	}
	return 0, false
}

type tenantContextKey struct {
	name string
}

var tenantCtxKey = &tenantContextKey{"hal-tenant"}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantMiddleware packs any tenant id into the context
func TenantMiddleware() func(http.Handler) http.Handler {
	tenantHeaderName := http.CanonicalHeaderKey(api.TenantHeader)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := DefaultTenant

			tenantHeader := r.Header[tenantHeaderName]
			if len(tenantHeader) > 0 && tenantHeader[0] != "" {
				tenant = tenantHeader[0]
			}

			if labeler, found := otelhttp.LabelerFromContext(r.Context()); found {
				labeler.Add(attribute.String(TraceAttributeTenant, tenant))
			}

			ctx := context.WithValue(r.Context(), tenantCtxKey, tenant)

			ctx = logging.NewContextWithLogger(
				ctx,
				logging.GetFromContext(r.Context()),
				"tenant",
				tenant,
			)

			if tenant != DefaultTenant {
				w.Header().Add(tenantHeaderName, tenant)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantFromContext extracts the tenant name, if any, from the provided context
func GetTenantFromContext(ctx context.Context) string {
	tenant, ok := ctx.Value(tenantCtxKey).(string)

	if !ok {
		return ""
	}

	return tenant
}

// negotiate picks the media type to answer with. Clients that only ask for
// plain JSON get the same document labelled as such.
func negotiate(r *http.Request, response rendering.Response) string {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return response.ContentType
	}

	if goautoneg.Negotiate(accept, []string{response.ContentType, JSONContentType}) == JSONContentType {
		return JSONContentType
	}

	return response.ContentType
}

func writeResponse(ctx context.Context, w http.ResponseWriter, r *http.Request, response rendering.Response) {
	body, err := json.Marshal(response.Document)
	if err != nil {
		logging.GetFromContext(ctx).Error("failed to marshal document", "err", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", negotiate(r, response))
	w.WriteHeader(response.Status)
	w.Write(body)
}

func writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, renderer *rendering.ResponseRenderer, impl any, err error) {
	writeResponse(ctx, w, r, renderer.RenderError(ctx, r.URL.RequestURI(), impl, err))
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/halgraph/internal/pkg/infrastructure/storage"
	api "github.com/diwise/halgraph/pkg/api/facilities"
	"github.com/diwise/halgraph/pkg/hal"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod
var path = expects.RequestPath

func DefaultTestFlags() FlagMap {
	flags := DefaultFlags()
	flags[servicePort] = "0"
	return flags
}

func TestIntegrateFederatedFacilities(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	ms := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/api"),
		),
		Returns(
			response.ContentType(hal.ContentType),
			response.Code(http.StatusOK),
			response.Body([]byte(upstreamEntryPoint)),
		),
	)
	defer ms.Close()

	server, err := initialize(ctx, DefaultTestFlags(), "test", storage.NewMemoryStore(), &AppConfig{
		facilitiesConfig: newTestConfig(ms.URL()),
		opaConfig:        newAuthConfig(),
	})
	is.NoErr(err)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	resp, body := testRequest(ts.URL, "/api/facilities")
	is.Equal(resp.StatusCode, http.StatusOK)

	doc, err := hal.NewDocumentFromJSON([]byte(body))
	is.NoErr(err)

	is.Equal(len(doc.Embedded(hal.RelItem)), 1)
	is.Equal(doc.Links(api.RelUpstream)[0].Href, ms.URL()+"/api/facilities?limit=25&offset=0")
	is.Equal(ms.RequestCount(), 1)
}

func TestIntegrateEntryPoint(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	server, err := initialize(ctx, DefaultTestFlags(), "test", storage.NewMemoryStore(), &AppConfig{
		facilitiesConfig: newTestConfig("http://127.0.0.1:1/api"),
		opaConfig:        newAuthConfig(),
	})
	is.NoErr(err)
	is.True(strings.HasSuffix(server.Addr, ":0"))

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	resp, body := testRequest(ts.URL, "/api")
	is.Equal(resp.StatusCode, http.StatusOK)

	doc, err := hal.NewDocumentFromJSON([]byte(body))
	is.NoErr(err)
	is.Equal(doc.State()["version"], "test")
	is.Equal(doc.Links(api.RelUpstream)[0].Href, "http://127.0.0.1:1/api") // upstreams are linked without being fetched
}

func testRequest(baseURL, path string) (*http.Response, string) {
	req, _ := http.NewRequest(http.MethodGet, baseURL+path, nil)
	resp, _ := http.DefaultClient.Do(req)
	respBody, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	return resp, string(respBody)
}

func newAuthConfig() io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(opaModule))
}

func newTestConfig(url string) io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(fmt.Sprintf(configFileFmt, url)))
}

var configFileFmt string = `
name: facilities-api
tenants:
  - id: default
    name: Kommunen
    facilities:
    - id: beach-1
      name: Hartungviken
      category: beach
    upstreams:
    - endpoint: %s
      tenant: upstream
`

const opaModule string = `
package example.authz

default allow := false

allow = response {
    response := {
    }
}
`

const upstreamEntryPoint string = `{"_links":{"self":{"href":"/api"},"facilities":{"href":"/api/facilities?limit=25&offset=0"}},"name":"upstream"}`

package client

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod
var path = expects.RequestPath

type pageInfo struct {
	Title string `json:"title"`
}

type page interface {
	Info(ctx context.Context) (pageInfo, error)
	Meta(ctx context.Context) (resources.Optional[map[string]any], error)
	Items(ctx context.Context) ([]page, error)
	Find(ctx context.Context, id *int) (resources.Optional[page], error)
	Named(ctx context.Context, name string) ([]hal.Link, error)
	Next(ctx context.Context) (page, error)
	Self(ctx context.Context) (hal.Link, error)
	Raw(ctx context.Context) (string, error)
}

type pageProxy struct{ resources.Remote }

func (p pageProxy) Info(ctx context.Context) (pageInfo, error) {
	return resources.Call[pageInfo](ctx, p, "Info")
}

func (p pageProxy) Meta(ctx context.Context) (resources.Optional[map[string]any], error) {
	return resources.Call[resources.Optional[map[string]any]](ctx, p, "Meta")
}

func (p pageProxy) Items(ctx context.Context) ([]page, error) {
	return resources.Call[[]page](ctx, p, "Items")
}

func (p pageProxy) Find(ctx context.Context, id *int) (resources.Optional[page], error) {
	return resources.Call[resources.Optional[page]](ctx, p, "Find", id)
}

func (p pageProxy) Named(ctx context.Context, name string) ([]hal.Link, error) {
	return resources.Call[[]hal.Link](ctx, p, "Named", name)
}

func (p pageProxy) Next(ctx context.Context) (page, error) {
	return resources.Call[page](ctx, p, "Next")
}

func (p pageProxy) Self(ctx context.Context) (hal.Link, error) {
	return resources.Call[hal.Link](ctx, p, "Self")
}

func (p pageProxy) Raw(ctx context.Context) (string, error) {
	return resources.Call[string](ctx, p, "Raw")
}

type metaOnly interface {
	Meta(ctx context.Context) (resources.Optional[map[string]any], error)
}

func newRegistry(is *is.I) *resources.Registry {
	reg := resources.NewRegistry()
	is.NoErr(resources.Declare[page](reg,
		resources.State("Info"),
		resources.Related("item", "Items"),
		resources.Related("find", "Find", resources.Var("id")),
		resources.Related("named", "Named", resources.LinkName()),
		resources.Related("next", "Next"),
		resources.SelfLink("Self"),
		resources.Representation("Raw"),
		resources.Proxy(func(r resources.Remote) page { return pageProxy{r} }),
	))
	is.NoErr(resources.Declare[metaOnly](reg, resources.State("Meta")))
	return reg
}

type fakeTransport struct {
	mu        sync.Mutex
	documents map[string]*hal.Document
	failures  map[string]int
	calls     map[string]int
	gate      chan struct{}
	entered   chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		documents: map[string]*hal.Document{},
		failures:  map[string]int{},
		calls:     map[string]int{},
	}
}

func (f *fakeTransport) Fetch(ctx context.Context, uri string) (*hal.Document, error) {
	if f.entered != nil {
		f.entered <- uri
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[uri]++

	if f.failures[uri] > 0 {
		f.failures[uri]--
		return nil, errors.NewTransportError(http.StatusServiceUnavailable, uri, nil)
	}

	doc, ok := f.documents[uri]
	if !ok {
		return nil, errors.NewTransportError(http.StatusNotFound, uri, nil)
	}

	return doc, nil
}

func (f *fakeTransport) count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

const root = "http://pages.test/pages/root"

func rootDocument() *hal.Document {
	return hal.NewDocument(
		hal.Self(hal.NewLink("/pages/root")),
		hal.Property("title", "root"),
		hal.Embedded("item", hal.NewDocument(
			hal.Self(hal.NewLink("/pages/1")),
			hal.Property("title", "one"),
		)),
		hal.Links("item", hal.NewLink("/pages/1"), hal.NewLink("2")),
		hal.Links("find", hal.NewLink("/pages/{id}")),
		hal.Links("named",
			hal.NewLink("/pages/a", hal.Name("a")),
			hal.NewLink("/pages/b", hal.Name("b")),
		),
		hal.Links("next", hal.NewLink("/pages/2")),
	)
}

func TestSingleFetchPerURI(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()

	c := New(newRegistry(is), WithTransport(tr))

	first, err := c.Resolve(hal.NewLink(root), reflect.TypeFor[page]())
	is.NoErr(err)

	for range 10 {
		h, err := c.Resolve(hal.NewLink(root), reflect.TypeFor[page]())
		is.NoErr(err)
		is.True(h == first) // the same uri and type should give the same handle

		p, _ := h.Proxy()
		info, err := p.(page).Info(ctx)
		is.NoErr(err)
		is.Equal(info.Title, "root")
	}

	is.Equal(tr.count(root), 1) // the document should be fetched once
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()
	tr.gate = make(chan struct{})

	c := New(newRegistry(is), WithTransport(tr))
	p, err := GetEntryPoint[page](c, root)
	is.NoErr(err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Items(ctx)
			errs <- err
		}()
	}

	close(tr.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		is.NoErr(err)
	}

	is.Equal(tr.count(root), 1) // racing accessors should share a single fetch
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()
	tr.gate = make(chan struct{})
	tr.entered = make(chan string, 1)

	c := New(newRegistry(is), WithTransport(tr))
	p, err := GetEntryPoint[page](c, root)
	is.NoErr(err)

	cancelled, cancel := context.WithCancel(ctx)

	first := make(chan error, 1)
	go func() {
		_, err := p.Info(cancelled)
		first <- err
	}()

	<-tr.entered

	second := make(chan error, 1)
	go func() {
		_, err := p.Info(ctx)
		second <- err
	}()

	cancel()
	err = <-first
	is.True(errors.Is(err, context.Canceled)) // the cancelled caller stops waiting

	close(tr.gate)
	is.NoErr(<-second) // the other caller should still get the document
	is.Equal(tr.count(root), 1)
}

func TestEmbeddedBeforeLinksWithoutDuplicates(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()

	c := New(newRegistry(is), WithTransport(tr))
	p, err := GetEntryPoint[page](c, root)
	is.NoErr(err)

	items, err := p.Items(ctx)
	is.NoErr(err)
	is.Equal(len(items), 2) // the link to the embedded page should be dropped

	first, err := items[0].Self(ctx)
	is.NoErr(err)
	is.Equal(first.Href, "http://pages.test/pages/1")

	info, err := items[0].Info(ctx)
	is.NoErr(err)
	is.Equal(info.Title, "one") // embedded state is read without a fetch
	is.Equal(tr.count("http://pages.test/pages/1"), 0)

	second, err := items[1].Self(ctx)
	is.NoErr(err)
	is.Equal(second.Href, "http://pages.test/pages/2") // relative hrefs resolve against the document uri
}

func TestIdempotentAccessor(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()
	tr.documents["http://pages.test/pages/2"] = hal.NewDocument(hal.Property("title", "two"))

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	a, err := p.Items(ctx)
	is.NoErr(err)
	b, err := p.Items(ctx)
	is.NoErr(err)
	is.Equal(a, b) // repeated calls should give equal results

	n1, err := p.Next(ctx)
	is.NoErr(err)
	n2, err := p.Next(ctx)
	is.NoErr(err)
	is.Equal(n1, n2)

	_, err = n1.Info(ctx)
	is.NoErr(err)
	_, err = n2.Info(ctx)
	is.NoErr(err)

	is.Equal(tr.count(root), 1)
	is.Equal(tr.count("http://pages.test/pages/2"), 1)
}

func TestTemplateResolution(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	five := 5
	found, err := p.Find(ctx, &five)
	is.NoErr(err)

	target, ok := found.Get()
	is.True(ok)

	l, err := target.Self(ctx)
	is.NoErr(err)
	is.Equal(l.Href, "http://pages.test/pages/5")
	is.True(!l.Templated) // the expanded link should be concrete

	found, err = p.Find(ctx, nil)
	is.NoErr(err)

	template, ok := found.Get()
	is.True(ok)

	l, err = template.Self(ctx)
	is.NoErr(err)
	is.Equal(l.Href, "http://pages.test/pages/{id}")
	is.True(l.Templated)

	_, err = template.Info(ctx)
	is.True(errors.IsDeveloperError(err)) // an unexpanded template cannot be followed

	is.Equal(tr.count("http://pages.test/pages/{id}"), 0)
	is.Equal(tr.count("http://pages.test/pages/5"), 0) // handles are lazy
}

func TestFollowingATemplateIsADeveloperError(t *testing.T) {
	is := is.New(t)

	c := New(newRegistry(is), WithTransport(newFakeTransport()))

	_, err := c.Resolve(hal.NewLink("http://pages.test/pages/{id}"), reflect.TypeFor[page]())
	is.True(errors.IsDeveloperError(err))
}

func TestUndeclaredInterfaceIsADeveloperError(t *testing.T) {
	is := is.New(t)

	c := New(resources.NewRegistry(), WithTransport(newFakeTransport()))

	_, err := GetEntryPoint[page](c, root)
	is.True(errors.IsDeveloperError(err))

	reg := newRegistry(is)
	c = New(reg, WithTransport(newFakeTransport()))

	_, err = GetEntryPoint[metaOnly](c, root)
	is.True(errors.IsDeveloperError(err)) // metaOnly has no client proxy
}

func TestNamedLinkSelector(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	links, err := p.Named(ctx, "b")
	is.NoErr(err)
	is.Equal(len(links), 1)
	is.Equal(links[0].Href, "http://pages.test/pages/b")

	links, err = p.Named(ctx, "")
	is.NoErr(err)
	is.Equal(len(links), 2) // an empty name selects every link
}

func TestFailedFetchIsRetried(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = rootDocument()
	tr.failures[root] = 1

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	_, err := p.Info(ctx)
	is.True(errors.IsTransportError(err)) // the first fetch fails

	var te *errors.TransportError
	is.True(errors.As(err, &te))
	is.Equal(te.StatusCode, http.StatusServiceUnavailable)
	is.Equal(te.URI, root)

	info, err := p.Info(ctx)
	is.NoErr(err) // a fresh call should fetch again
	is.Equal(info.Title, "root")
	is.Equal(tr.count(root), 2)
}

func TestMissingSingleRelationIsNotFound(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(hal.Property("title", "last"))

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	_, err := p.Next(ctx)
	is.True(errors.IsNotFound(err))
}

func TestOptionalStateOfEmptyDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	c := New(newRegistry(is), WithTransport(newFakeTransport()))

	h, err := c.FromDocument(hal.NewDocument(), reflect.TypeFor[metaOnly]())
	is.NoErr(err)

	meta, err := h.Invoke(ctx, "Meta")
	is.NoErr(err)
	is.True(!meta.(resources.Optional[map[string]any]).IsPresent()) // empty state is absent

	_, err = h.Invoke(ctx, "Missing")
	is.True(errors.IsDeveloperError(err)) // undeclared methods fail
}

func TestHTTPTransport(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/pages/root"),
		),
		Returns(
			response.ContentType(hal.ContentType),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"_links":{"self":{"href":"/pages/root"},"next":{"href":"/pages/2"}},"title":"remote"}`)),
		),
	)
	defer s.Close()

	c := New(newRegistry(is))
	p, err := GetEntryPoint[page](c, s.URL()+"/pages/root")
	is.NoErr(err)

	info, err := p.Info(ctx)
	is.NoErr(err)
	is.Equal(info.Title, "remote")

	raw, err := p.Raw(ctx)
	is.NoErr(err)
	is.Equal(raw, `{"_links":{"self":{"href":"/pages/root"},"next":{"href":"/pages/2"}},"title":"remote"}`)

	next, err := p.Next(ctx)
	is.NoErr(err)

	l, _ := next.Self(ctx)
	is.Equal(l.Href, s.URL()+"/pages/2")

	is.Equal(s.RequestCount(), 1)
}

func TestHTTPTransportKeepsUpstreamErrorDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := testutils.NewMockServiceThat(
		Expects(is, method(http.MethodGet)),
		Returns(
			response.ContentType(hal.ErrorContentType),
			response.Code(http.StatusBadGateway),
			response.Body([]byte(`{"message":"upstream is down","class":"timeout","_embedded":{"errors":[{"message":"a"},{"message":"b"}]}}`)),
		),
	)
	defer s.Close()

	c := New(newRegistry(is))
	p, _ := GetEntryPoint[page](c, s.URL()+"/pages/root")

	_, err := p.Info(ctx)

	var te *errors.TransportError
	is.True(errors.As(err, &te))
	is.Equal(te.StatusCode, http.StatusBadGateway)
	is.True(te.Body != nil)
	is.Equal(len(te.Body.Embedded(hal.RelErrors)), 2) // upstream causes should be kept
}

func TestNoMatchingTemplateIsADeveloperError(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(
		hal.Links("find", hal.NewLink("/pages/{name}")),
	)

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	five := 5
	_, err := p.Find(ctx, &five)
	is.True(errors.IsDeveloperError(err)) // no template accepts id
	is.True(strings.Contains(err.Error(), `"find"`))
	is.True(strings.Contains(err.Error(), "id"))
}

func TestOnlyMatchingTemplatesAreExpanded(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(
		hal.Links("find", hal.NewLink("/a/{id}"), hal.NewLink("/b/{name}")),
	)

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	five := 5
	found, err := p.Find(ctx, &five)
	is.NoErr(err)

	target, ok := found.Get()
	is.True(ok) // exactly one template should match

	l, err := target.Self(ctx)
	is.NoErr(err)
	is.Equal(l.Href, "http://pages.test/a/5")
}

func TestAllTemplatedRelationKeepsTemplates(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(
		hal.Links("item", hal.NewLink("/pages/{id}")),
		hal.Links("named", hal.NewLink("/pages/{name}", hal.Name("a"))),
	)

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	items, err := p.Items(ctx)
	is.NoErr(err)
	is.Equal(len(items), 1) // a relation with only templates yields the templates

	l, err := items[0].Self(ctx)
	is.NoErr(err)
	is.True(l.Templated)
	is.Equal(l.Href, "http://pages.test/pages/{id}")

	links, err := p.Named(ctx, "")
	is.NoErr(err)
	is.Equal(len(links), 1)
	is.True(links[0].Templated) // links are emitted as the raw template
	is.Equal(links[0].Href, "http://pages.test/pages/{name}")
}

func TestTemplatesAreDroppedNextToConcreteLinks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(
		hal.Links("item", hal.NewLink("/pages/{id}"), hal.NewLink("/pages/3")),
	)

	c := New(newRegistry(is), WithTransport(tr))
	p, _ := GetEntryPoint[page](c, root)

	items, err := p.Items(ctx)
	is.NoErr(err)
	is.Equal(len(items), 1)

	l, err := items[0].Self(ctx)
	is.NoErr(err)
	is.Equal(l.Href, "http://pages.test/pages/3")
}

func TestDeveloperErrorsAreMemoized(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	tr := newFakeTransport()
	tr.documents[root] = hal.NewDocument(
		hal.Links("find", hal.NewLink("/pages/{name}")),
	)

	c := New(newRegistry(is), WithTransport(tr))

	h, err := c.Resolve(hal.NewLink(root), reflect.TypeFor[page]())
	is.NoErr(err)

	five := 5
	_, first := h.Invoke(ctx, "Find", &five)
	is.True(errors.IsDeveloperError(first))

	_, second := h.Invoke(ctx, "Find", &five)
	is.True(first == second) // the repeated call is answered from the memo
	is.Equal(len(h.memo), 1)
	is.Equal(tr.count(root), 1)
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"golang.org/x/sync/singleflight"
)

// Client resolves links into typed resource handles. It owns the handle
// cache and the fetched documents, so its lifetime is the cache lifetime:
// create one per request or session.
type Client struct {
	registry  *resources.Registry
	transport Transport

	httpClient *http.Client
	headers    map[string][]string
	debug      bool

	mu      sync.Mutex
	handles map[handleKey]*Handle

	docmu     sync.RWMutex
	documents map[string]*hal.Document
	fetches   singleflight.Group
}

type handleKey struct {
	href  string
	iface reflect.Type
}

type Option func(*Client)

func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithHeader(name string, values ...string) Option {
	return func(c *Client) {
		c.headers[name] = append(c.headers[name], values...)
	}
}

func Debug(enabled string) Option {
	return func(c *Client) {
		c.debug = (enabled == "true")
	}
}

func New(registry *resources.Registry, options ...Option) *Client {
	c := &Client{
		registry:  registry,
		headers:   map[string][]string{},
		handles:   map[handleKey]*Handle{},
		documents: map[string]*hal.Document{},
	}

	for _, option := range options {
		option(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(c.httpClient, c.headers, c.debug)
	}

	return c
}

// GetEntryPoint returns a lazily resolving T for the resource at uri. The
// resource is not fetched until an accessor needs its document.
func GetEntryPoint[T any](c *Client, uri string) (T, error) {
	return Follow[T](c, hal.NewLink(uri))
}

// Follow returns a lazily resolving T for the resource behind link.
func Follow[T any](c *Client, link hal.Link) (T, error) {
	var zero T

	h, err := c.Resolve(link, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}

	proxy, err := h.Proxy()
	if err != nil {
		return zero, err
	}

	return proxy.(T), nil
}

// Resolve returns the handle for link typed as iface. Resolving the same
// absolute href and type again returns the same handle.
func (c *Client) Resolve(link hal.Link, iface reflect.Type) (*Handle, error) {
	if link.Templated {
		return nil, errors.NewContractError("cannot follow an unexpanded template %s", link.Href)
	}

	descriptor, err := c.registry.Descriptor(iface)
	if err != nil {
		return nil, err
	}

	href, base, err := canonical(link.Href)
	if err != nil {
		return nil, err
	}

	key := handleKey{href: href, iface: iface}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[key]; ok {
		return h, nil
	}

	l := link
	l.Href = href

	h := newHandle(c, iface, descriptor, &l, base, nil)
	c.handles[key] = h

	return h, nil
}

// FromDocument returns a handle backed by an already known document. Such
// handles never fetch. Relative hrefs in doc are resolved against its self
// link, if it has an absolute one.
func (c *Client) FromDocument(doc *hal.Document, iface reflect.Type) (*Handle, error) {
	return c.fromDocument(doc, iface, nil)
}

func (c *Client) fromDocument(doc *hal.Document, iface reflect.Type, parent *url.URL) (*Handle, error) {
	descriptor, err := c.registry.Descriptor(iface)
	if err != nil {
		return nil, err
	}

	base := parent
	link := doc.SelfLink()

	if link != nil {
		link.Href = resolveHref(parent, link.Href)
		if u, err := url.Parse(link.Href); err == nil && u.IsAbs() {
			base = u
		}
	}

	return newHandle(c, iface, descriptor, link, base, doc), nil
}

func (c *Client) template(link hal.Link, iface reflect.Type) (*Handle, error) {
	descriptor, err := c.registry.Descriptor(iface)
	if err != nil {
		return nil, err
	}

	return newHandle(c, iface, descriptor, &link, nil, nil), nil
}

// fetch returns the document at uri, fetching it at most once. Concurrent
// callers share a single in flight fetch, which is not cancelled with the
// caller that started it. A caller whose context ends stops waiting on its
// own. Failures are not stored, so the next call tries again.
func (c *Client) fetch(ctx context.Context, uri string) (*hal.Document, error) {
	c.docmu.RLock()
	doc, ok := c.documents[uri]
	c.docmu.RUnlock()

	if ok {
		return doc, nil
	}

	shared := context.WithoutCancel(ctx)

	ch := c.fetches.DoChan(uri, func() (any, error) {
		c.docmu.RLock()
		doc, ok := c.documents[uri]
		c.docmu.RUnlock()

		if ok {
			return doc, nil
		}

		doc, err := c.transport.Fetch(shared, uri)
		if err != nil {
			if !errors.IsTransportError(err) {
				err = errors.NewTransportError(0, uri, err)
			}
			return nil, err
		}

		c.docmu.Lock()
		c.documents[uri] = doc
		c.docmu.Unlock()

		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("stopped waiting for %s: %w", uri, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			logging.GetFromContext(ctx).Debug("failed to fetch resource", "uri", uri, "err", r.Err.Error())
			return nil, r.Err
		}
		return r.Val.(*hal.Document), nil
	}
}

func canonical(href string) (string, *url.URL, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", nil, errors.NewContractError("invalid link %q: %s", href, err.Error())
	}

	if !u.IsAbs() {
		return "", nil, errors.NewContractError("cannot fetch relative link %q", href)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), u, nil
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sync"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
)

// Handle is a lazily resolving reference to a resource, typed as one of the
// declared resource interfaces. The underlying document is fetched on first
// use and every accessor result is memoized per invocation.
type Handle struct {
	client     *Client
	iface      reflect.Type
	descriptor *resources.Descriptor

	link  *hal.Link
	base  *url.URL
	known *hal.Document

	proxyOnce sync.Once
	proxy     any
	proxyErr  error

	mu   sync.Mutex
	memo map[string]result
}

type result struct {
	value any
	err   error
}

func newHandle(c *Client, iface reflect.Type, descriptor *resources.Descriptor, link *hal.Link, base *url.URL, known *hal.Document) *Handle {
	return &Handle{
		client:     c,
		iface:      iface,
		descriptor: descriptor,
		link:       link,
		base:       base,
		known:      known,
		memo:       map[string]result{},
	}
}

// Proxy returns the value implementing the handle's resource interface.
func (h *Handle) Proxy() (any, error) {
	h.proxyOnce.Do(func() {
		h.proxy, h.proxyErr = h.client.registry.NewProxy(h.iface, h)
	})
	return h.proxy, h.proxyErr
}

// Link returns the link the handle was resolved from, or the zero link for
// handles built from documents without a self link.
func (h *Handle) Link() hal.Link {
	if h.link == nil {
		return hal.Link{}
	}
	return *h.link
}

func (h *Handle) CreateLink(ctx context.Context) (*hal.Link, error) {
	if h.link == nil {
		return nil, nil
	}

	l := *h.link
	return &l, nil
}

// Invoke dispatches the declared accessor named method. Successful results
// and developer errors are memoized, other failures are retried on the next
// call.
func (h *Handle) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	m, ok := h.descriptor.Method(method)
	if !ok {
		return nil, errors.NewContractError("%s.%s has no capability declaration", h.iface, method)
	}

	inv, err := resources.NewInvocation(h.iface, m, args)
	if err != nil {
		return nil, err
	}

	key := inv.Key()

	h.mu.Lock()
	r, found := h.memo[key]
	h.mu.Unlock()

	if found {
		return r.value, r.err
	}

	value, err := h.invoke(ctx, inv)
	if err != nil {
		err = fmt.Errorf("%s.%s: %w", h.iface, method, err)
	}

	if err != nil && !errors.IsDeveloperError(err) {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if r, found := h.memo[key]; found {
		return r.value, r.err
	}

	h.memo[key] = result{value: value, err: err}

	return value, err
}

func (h *Handle) invoke(ctx context.Context, inv *resources.Invocation) (any, error) {
	m := inv.Method

	switch m.Role {
	case resources.RoleState:
		return h.state(ctx, m)
	case resources.RoleRelated:
		doc, err := h.document(ctx)
		if err != nil {
			return nil, err
		}

		items, err := h.resolveRelated(doc, inv)
		if err != nil {
			return nil, err
		}

		return resources.ToShape(m.Returns, items)
	case resources.RoleSelfLink:
		if m.Returns == reflect.TypeFor[string]() {
			return h.Link().Href, nil
		}
		return h.Link(), nil
	case resources.RoleRepresentation:
		return h.representation(ctx, m)
	}

	return nil, errors.NewContractError("unsupported role %s for %s.%s", m.Role, h.iface, m.Name)
}

func (h *Handle) document(ctx context.Context) (*hal.Document, error) {
	if h.known != nil {
		return h.known, nil
	}

	if h.link == nil {
		return nil, errors.NewContractError("%s handle has neither a document nor a link", h.iface)
	}

	if h.link.Templated {
		return nil, errors.NewContractError("cannot follow an unexpanded template %s", h.link.Href)
	}

	return h.client.fetch(ctx, h.link.Href)
}

func (h *Handle) state(ctx context.Context, m *resources.Method) (any, error) {
	doc, err := h.document(ctx)
	if err != nil {
		return nil, err
	}

	if m.Shape == resources.ShapeOptional && !doc.HasState() {
		return resources.ToShape(m.Returns, nil)
	}

	target := reflect.New(m.Emission)
	if err := doc.DecodeState(target.Interface()); err != nil {
		return nil, errors.NewContractError("state of %s cannot be read as %s: %s", h.Link().Href, m.Emission, err.Error())
	}

	return resources.ToShape(m.Returns, []any{target.Elem().Interface()})
}

func (h *Handle) representation(ctx context.Context, m *resources.Method) (any, error) {
	doc, err := h.document(ctx)
	if err != nil {
		return nil, err
	}

	switch m.Returns {
	case reflect.TypeFor[*hal.Document]():
		return doc, nil
	case reflect.TypeFor[hal.Document]():
		return *doc, nil
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal representation: %w", err)
	}

	switch m.Returns {
	case reflect.TypeFor[map[string]any]():
		tree := map[string]any{}
		if err := json.Unmarshal(b, &tree); err != nil {
			return nil, fmt.Errorf("failed to build representation tree: %w", err)
		}
		return tree, nil
	case reflect.TypeFor[json.RawMessage]():
		return json.RawMessage(b), nil
	case reflect.TypeFor[[]byte]():
		return b, nil
	case reflect.TypeFor[string]():
		return string(b), nil
	}

	return nil, errors.NewContractError("unsupported representation type %s for %s.%s", m.Returns, h.iface, m.Name)
}

package client

import (
	"net/url"
	"slices"
	"strings"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
	"github.com/diwise/halgraph/pkg/resources"
)

type candidates struct {
	embedded []*hal.Document
	links    []hal.Link
}

// resolveRelated selects the embedded documents and links of doc that answer
// inv and turns them into items of the invocation's emission type: links
// as is, anything else as proxies of new handles. Embedded items come
// before linked ones, each group in document order.
func (h *Handle) resolveRelated(doc *hal.Document, inv *resources.Invocation) ([]any, error) {
	rel := inv.Method.Relation
	c := h.collect(doc, rel, inv.LinkName)

	switch {
	case inv.HasBoundVariables():
		return h.expandTemplates(c, rel, inv)
	case inv.AllArgsNil && slices.ContainsFunc(c.links, isTemplated):
		return h.emitTemplates(c.links, inv)
	}

	concrete := slices.DeleteFunc(slices.Clone(c.links), isTemplated)

	if len(c.embedded) == 0 && len(concrete) == 0 && len(c.links) > 0 {
		return h.emitTemplates(c.links, inv)
	}

	items := make([]any, 0, len(c.embedded)+len(concrete))

	for _, e := range c.embedded {
		item, ok, err := h.fromEmbedded(e, inv)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}

	for _, l := range concrete {
		item, err := h.fromLink(l, inv)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// collect gathers the candidates for rel with hrefs made absolute. Links
// that merely point at one of the embedded documents are dropped. A non
// empty name filters both links and embedded documents by link name.
func (h *Handle) collect(doc *hal.Document, rel, name string) candidates {
	c := candidates{}
	embeddedHrefs := map[string]struct{}{}

	for _, e := range doc.Embedded(rel) {
		self := e.SelfLink()

		if name != "" && (self == nil || self.Name != name) {
			continue
		}

		if self != nil {
			embeddedHrefs[resolveHref(h.base, self.Href)] = struct{}{}
		}

		c.embedded = append(c.embedded, e)
	}

	for _, l := range doc.Links(rel) {
		if name != "" && l.Name != name {
			continue
		}

		l.Href = resolveHref(h.base, l.Href)

		if _, dup := embeddedHrefs[l.Href]; dup {
			continue
		}

		c.links = append(c.links, l)
	}

	return c
}

func (h *Handle) expandTemplates(c candidates, rel string, inv *resources.Invocation) ([]any, error) {
	bound := inv.BoundVariableNames()

	var items []any

	for _, l := range c.links {
		if !l.Templated || !isSuperset(l.Variables(), bound) {
			continue
		}

		expanded, err := l.Expand(inv.Variables)
		if err != nil {
			return nil, errors.NewContractError("failed to expand template for relation %q: %s", rel, err.Error())
		}

		if e := h.embeddedAt(c.embedded, expanded.Href); e != nil && !resources.IsLinkEmission(inv.Emission) {
			item, _, err := h.fromEmbedded(e, inv)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		item, err := h.fromLink(expanded, inv)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, errors.NewContractError("no link template for relation %q on %s accepts the variables %s", rel, h.Link().Href, strings.Join(bound, ", "))
	}

	return items, nil
}

func (h *Handle) emitTemplates(links []hal.Link, inv *resources.Invocation) ([]any, error) {
	var items []any

	for _, l := range links {
		if !l.Templated {
			continue
		}

		if resources.IsLinkEmission(inv.Emission) {
			items = append(items, l)
			continue
		}

		t, err := h.client.template(l, inv.Emission)
		if err != nil {
			return nil, err
		}

		proxy, err := t.Proxy()
		if err != nil {
			return nil, err
		}

		items = append(items, proxy)
	}

	return items, nil
}

func (h *Handle) fromLink(l hal.Link, inv *resources.Invocation) (any, error) {
	if resources.IsLinkEmission(inv.Emission) {
		return l, nil
	}

	target, err := h.client.Resolve(l, inv.Emission)
	if err != nil {
		return nil, err
	}

	return target.Proxy()
}

// fromEmbedded reports false when a link is requested from an embedded
// document that has no self link.
func (h *Handle) fromEmbedded(e *hal.Document, inv *resources.Invocation) (any, bool, error) {
	if resources.IsLinkEmission(inv.Emission) {
		self := e.SelfLink()
		if self == nil {
			return nil, false, nil
		}
		self.Href = resolveHref(h.base, self.Href)
		return *self, true, nil
	}

	target, err := h.client.fromDocument(e, inv.Emission, h.base)
	if err != nil {
		return nil, false, err
	}

	proxy, err := target.Proxy()
	return proxy, err == nil, err
}

func (h *Handle) embeddedAt(embedded []*hal.Document, href string) *hal.Document {
	for _, e := range embedded {
		if self := e.SelfLink(); self != nil && resolveHref(h.base, self.Href) == href {
			return e
		}
	}
	return nil
}

func isTemplated(l hal.Link) bool {
	return l.Templated
}

func isSuperset(vars, required []string) bool {
	for _, name := range required {
		if !slices.Contains(vars, name) {
			return false
		}
	}
	return true
}

// resolveHref makes href absolute against base. Templates are joined as
// text since their placeholders are not valid URL characters.
func resolveHref(base *url.URL, href string) string {
	if base == nil || href == "" {
		return href
	}

	if !hal.ContainsPlaceholders(href) {
		ref, err := url.Parse(href)
		if err != nil {
			return href
		}
		return base.ResolveReference(ref).String()
	}

	if strings.Contains(href, "://") {
		return href
	}

	origin := base.Scheme + "://" + base.Host

	if strings.HasPrefix(href, "/") {
		return origin + href
	}

	dir := base.Path[:strings.LastIndex(base.Path, "/")+1]
	if dir == "" {
		dir = "/"
	}

	return origin + dir + href
}

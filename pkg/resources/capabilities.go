package resources

import (
	"context"

	"github.com/diwise/halgraph/pkg/hal"
)

// LinkableResource is implemented by resources that can be referenced from
// other documents. Returning a nil link is a contract violation.
type LinkableResource interface {
	CreateLink(ctx context.Context) (*hal.Link, error)
}

// EmbeddableResource is implemented by resources that may be inlined into
// the document of the resource that refers to them.
type EmbeddableResource interface {
	IsEmbedded() bool
	SuppressLinkWhenEmbedded() bool
}

// Embedding can be embedded into resource implementations to satisfy
// EmbeddableResource.
type Embedding struct {
	Embedded     bool
	SuppressLink bool
}

func (e Embedding) IsEmbedded() bool {
	return e.Embedded
}

func (e Embedding) SuppressLinkWhenEmbedded() bool {
	return e.SuppressLink
}

// Invoker dispatches a declared accessor by method name. Client handles
// implement it so that hand written proxies can forward their methods.
type Invoker interface {
	Invoke(ctx context.Context, method string, args ...any) (any, error)
}

// Remote is what a client handle offers the proxies wrapping it. Embedding a
// Remote in a proxy struct makes the proxy linkable, so resources fetched
// from elsewhere can be rendered as links.
type Remote interface {
	Invoker
	LinkableResource
}

// ProxyFunc wraps a remote handle into a value implementing a resource
// interface.
type ProxyFunc func(r Remote) any

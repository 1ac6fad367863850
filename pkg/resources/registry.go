package resources

import (
	"reflect"
	"sync"

	"github.com/diwise/halgraph/pkg/errors"
)

type methodDeclaration struct {
	name     string
	role     Role
	relation string
	params   []Param
}

type declaration struct {
	methods []methodDeclaration
	proxy   ProxyFunc
}

type DeclarationOption func(d *declaration)

func State(method string) DeclarationOption {
	return func(d *declaration) {
		d.methods = append(d.methods, methodDeclaration{name: method, role: RoleState})
	}
}

func Related(relation, method string, params ...Param) DeclarationOption {
	return func(d *declaration) {
		d.methods = append(d.methods, methodDeclaration{name: method, role: RoleRelated, relation: relation, params: params})
	}
}

func SelfLink(method string) DeclarationOption {
	return func(d *declaration) {
		d.methods = append(d.methods, methodDeclaration{name: method, role: RoleSelfLink})
	}
}

func Representation(method string) DeclarationOption {
	return func(d *declaration) {
		d.methods = append(d.methods, methodDeclaration{name: method, role: RoleRepresentation})
	}
}

// Proxy registers the constructor used by clients to turn a resource handle
// into a value implementing T.
func Proxy[T any](fn func(r Remote) T) DeclarationOption {
	return func(d *declaration) {
		d.proxy = func(r Remote) any { return fn(r) }
	}
}

// Registry holds the capability declarations of resource interfaces and the
// descriptors derived from them. Descriptors are built once, on first use.
type Registry struct {
	mu           sync.RWMutex
	declarations map[reflect.Type]*declaration
	order        []reflect.Type
	descriptors  map[reflect.Type]*Descriptor
	implementors map[reflect.Type]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{
		declarations: map[reflect.Type]*declaration{},
		descriptors:  map[reflect.Type]*Descriptor{},
		implementors: map[reflect.Type]reflect.Type{},
	}
}

// Declare registers the resource interface T with the registry.
func Declare[T any](r *Registry, options ...DeclarationOption) error {
	return r.Declare(reflect.TypeFor[T](), options...)
}

func (r *Registry) Declare(iface reflect.Type, options ...DeclarationOption) error {
	if iface.Kind() != reflect.Interface {
		return errors.NewContractError("%s is not an interface type", iface)
	}

	decl := &declaration{}
	for _, option := range options {
		option(decl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.declarations[iface]; exists {
		return errors.NewContractError("%s is already declared", iface)
	}

	d, err := newDescriptor(iface, decl)
	if err != nil {
		return err
	}

	r.declarations[iface] = decl
	r.descriptors[iface] = d
	r.order = append(r.order, iface)

	return nil
}

// Descriptor returns the descriptor of a declared resource interface.
func (r *Registry) Descriptor(iface reflect.Type) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[iface]
	if !ok {
		return nil, errors.NewContractError("%s is not a declared resource interface", iface)
	}

	return d, nil
}

// DescriptorOf returns the descriptor of the resource interface implemented
// by impl. When several declared interfaces match, the one with the most
// methods wins and declaration order breaks ties.
func (r *Registry) DescriptorOf(impl any) (*Descriptor, error) {
	if impl == nil {
		return nil, errors.NewContractError("cannot describe a nil resource")
	}

	concrete := reflect.TypeOf(impl)

	r.mu.RLock()
	iface, found := r.implementors[concrete]
	r.mu.RUnlock()

	if found {
		return r.Descriptor(iface)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var best reflect.Type
	for _, candidate := range r.order {
		if !concrete.Implements(candidate) {
			continue
		}
		if best == nil || candidate.NumMethod() > best.NumMethod() {
			best = candidate
		}
	}

	if best == nil {
		return nil, errors.NewContractError("%s does not implement any declared resource interface", concrete)
	}

	r.implementors[concrete] = best

	return r.descriptors[best], nil
}

// NewProxy wraps the remote handle in the proxy registered for iface.
func (r *Registry) NewProxy(iface reflect.Type, remote Remote) (any, error) {
	r.mu.RLock()
	decl, ok := r.declarations[iface]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NewContractError("%s is not a declared resource interface", iface)
	}

	if decl.proxy == nil {
		return nil, errors.NewContractError("no client proxy is registered for %s", iface)
	}

	proxy := decl.proxy(remote)
	if proxy == nil || !reflect.TypeOf(proxy).Implements(iface) {
		return nil, errors.NewContractError("proxy registered for %s returned %T which does not implement it", iface, proxy)
	}

	return proxy, nil
}

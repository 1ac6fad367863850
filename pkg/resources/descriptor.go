package resources

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"strings"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/halgraph/pkg/hal"
)

// Role is the capability an accessor method plays in a resource interface.
type Role int

const (
	RoleState Role = iota + 1
	RoleRelated
	RoleSelfLink
	RoleRepresentation
)

func (r Role) String() string {
	switch r {
	case RoleState:
		return "state"
	case RoleRelated:
		return "related"
	case RoleSelfLink:
		return "self-link"
	case RoleRepresentation:
		return "representation"
	default:
		return "unknown"
	}
}

type paramKind int

const (
	paramVariable paramKind = iota
	paramLinkName
)

// Param binds a positional accessor argument (after the context) either to
// a URI template variable or to the named link selector.
type Param struct {
	name string
	kind paramKind
}

func Var(name string) Param {
	return Param{name: name, kind: paramVariable}
}

func LinkName() Param {
	return Param{kind: paramLinkName}
}

// Method is the descriptor of one declared accessor.
type Method struct {
	Name     string
	Role     Role
	Relation string
	Params   []Param
	Shape    Shape
	Returns  reflect.Type
	Emission reflect.Type
}

func (m *Method) TemplateVariables() []string {
	vars := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		if p.kind == paramVariable {
			vars = append(vars, p.name)
		}
	}
	return vars
}

// Descriptor is the flat, static description of a resource interface.
type Descriptor struct {
	Interface      reflect.Type
	State          *Method
	Related        []*Method
	SelfLink       *Method
	Representation *Method

	methods map[string]*Method
}

func (d *Descriptor) Method(name string) (*Method, bool) {
	m, ok := d.methods[name]
	return m, ok
}

func (d *Descriptor) Relations() []string {
	rels := make([]string, 0, len(d.Related))
	for _, m := range d.Related {
		rels = append(rels, m.Relation)
	}
	return rels
}

var contextType = reflect.TypeFor[context.Context]()
var linkType = reflect.TypeFor[hal.Link]()
var documentType = reflect.TypeFor[hal.Document]()
var documentPtrType = reflect.TypeFor[*hal.Document]()
var treeType = reflect.TypeFor[map[string]any]()
var rawMessageType = reflect.TypeFor[json.RawMessage]()
var bytesType = reflect.TypeFor[[]byte]()
var stringType = reflect.TypeFor[string]()

// IsLinkEmission reports whether an accessor emits plain links instead of
// resources.
func IsLinkEmission(t reflect.Type) bool {
	return t == linkType
}

func newDescriptor(iface reflect.Type, decl *declaration) (*Descriptor, error) {
	d := &Descriptor{
		Interface: iface,
		methods:   map[string]*Method{},
	}

	for _, md := range decl.methods {
		if _, exists := d.methods[md.name]; exists {
			return nil, errors.NewContractError("method %s.%s is declared more than once", iface, md.name)
		}

		m, err := describeMethod(iface, md)
		if err != nil {
			return nil, err
		}

		d.methods[m.Name] = m

		switch m.Role {
		case RoleState:
			if d.State != nil {
				return nil, errors.NewContractError("%s declares more than one state method", iface)
			}
			d.State = m
		case RoleRelated:
			d.Related = append(d.Related, m)
		case RoleSelfLink:
			if d.SelfLink != nil {
				return nil, errors.NewContractError("%s declares more than one self link method", iface)
			}
			d.SelfLink = m
		case RoleRepresentation:
			if d.Representation != nil {
				return nil, errors.NewContractError("%s declares more than one representation method", iface)
			}
			d.Representation = m
		}
	}

	slices.SortStableFunc(d.Related, func(a, b *Method) int {
		if c := CompareRelations(a.Relation, b.Relation); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	return d, nil
}

func describeMethod(iface reflect.Type, md methodDeclaration) (*Method, error) {
	rm, ok := iface.MethodByName(md.name)
	if !ok {
		return nil, errors.NewContractError("%s has no method named %s", iface, md.name)
	}

	ft := rm.Type
	if ft.NumIn() == 0 || ft.In(0) != contextType {
		return nil, errors.NewContractError("%s.%s must accept a context.Context as its first argument", iface, md.name)
	}

	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, errors.NewContractError("%s.%s must return a value and an error", iface, md.name)
	}

	if ft.IsVariadic() || ft.NumIn()-1 != len(md.params) {
		return nil, errors.NewContractError("%s.%s takes %d arguments but %d parameters are declared", iface, md.name, ft.NumIn()-1, len(md.params))
	}

	m := &Method{
		Name:     md.name,
		Role:     md.role,
		Relation: md.relation,
		Params:   md.params,
		Returns:  ft.Out(0),
	}

	m.Shape, m.Emission = ShapeOf(m.Returns)

	switch m.Role {
	case RoleRelated:
		if m.Relation == "" {
			return nil, errors.NewContractError("%s.%s is not bound to a relation", iface, md.name)
		}
		if m.Emission != linkType && m.Emission.Kind() != reflect.Interface {
			return nil, errors.NewContractError("%s.%s emits %s, expected a resource interface or hal.Link", iface, md.name, m.Emission)
		}
	case RoleState:
		if m.Shape != ShapeSingle && m.Shape != ShapeOptional {
			return nil, errors.NewContractError("unsupported return shape %s for state method %s.%s", m.Shape, iface, md.name)
		}
	case RoleSelfLink:
		if m.Returns != linkType && m.Returns != stringType {
			return nil, errors.NewContractError("self link method %s.%s must return hal.Link or string", iface, md.name)
		}
	case RoleRepresentation:
		if !slices.Contains([]reflect.Type{documentType, documentPtrType, treeType, rawMessageType, bytesType, stringType}, m.Returns) {
			return nil, errors.NewContractError("unsupported representation type %s for %s.%s", m.Returns, iface, md.name)
		}
	}

	return m, nil
}

package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/diwise/halgraph/pkg/errors"
)

// Invocation identifies one accessor call on a resource interface. It is
// created per call, never mutated and used as a memoization key.
type Invocation struct {
	Interface reflect.Type
	Method    *Method
	Emission  reflect.Type
	Variables map[string]any
	LinkName  string

	// AllArgsNil is set when every template variable argument is nil, which
	// asks for the unexpanded templates instead of concrete resources.
	AllArgsNil bool

	key string
}

func NewInvocation(iface reflect.Type, m *Method, args []any) (*Invocation, error) {
	if len(args) != len(m.Params) {
		return nil, errors.NewContractError("%s.%s expects %d arguments, got %d", iface, m.Name, len(m.Params), len(args))
	}

	inv := &Invocation{
		Interface: iface,
		Method:    m,
		Emission:  m.Emission,
		Variables: map[string]any{},
	}

	variableCount, nilCount := 0, 0

	for i, p := range m.Params {
		switch p.kind {
		case paramVariable:
			variableCount++
			value := normalize(args[i])
			if value == nil {
				nilCount++
			}
			inv.Variables[p.name] = value
		case paramLinkName:
			name, err := linkName(args[i])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", iface, m.Name, err)
			}
			inv.LinkName = name
		}
	}

	inv.AllArgsNil = variableCount > 0 && nilCount == variableCount

	vars, err := json.Marshal(inv.Variables)
	if err != nil {
		return nil, errors.NewContractError("arguments of %s.%s cannot be used as template variables: %s", iface, m.Name, err.Error())
	}

	inv.key = fmt.Sprintf("%s|%s|%s", m.Name, inv.LinkName, vars)

	return inv, nil
}

func (inv *Invocation) Key() string {
	return inv.key
}

func (inv *Invocation) HasBoundVariables() bool {
	return len(inv.BoundVariableNames()) > 0
}

// BoundVariableNames returns the sorted names of the variables that were
// given a non nil value.
func (inv *Invocation) BoundVariableNames() []string {
	names := make([]string, 0, len(inv.Variables))
	for name, value := range inv.Variables {
		if value != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (inv *Invocation) String() string {
	return fmt.Sprintf("%s.%s(%s)", inv.Interface, inv.Method.Name, strings.Join(inv.BoundVariableNames(), ", "))
}

func normalize(arg any) any {
	if arg == nil {
		return nil
	}

	v := reflect.ValueOf(arg)
	if isNil(v) {
		return nil
	}

	if v.Kind() == reflect.Pointer {
		return v.Elem().Interface()
	}

	return arg
}

func linkName(arg any) (string, error) {
	switch name := normalize(arg).(type) {
	case nil:
		return "", nil
	case string:
		return name, nil
	default:
		return "", errors.NewContractError("link name must be a string, got %T", arg)
	}
}

// Call invokes a declared accessor through inv and asserts its declared
// return type. It is the building block of client proxies.
func Call[R any](ctx context.Context, inv Invoker, method string, args ...any) (R, error) {
	var zero R

	result, err := inv.Invoke(ctx, method, args...)
	if err != nil {
		return zero, err
	}

	if result == nil {
		return zero, nil
	}

	r, ok := result.(R)
	if !ok {
		return zero, errors.NewContractError("%s returned %T, expected %s", method, result, reflect.TypeFor[R]())
	}

	return r, nil
}

// Emit calls a declared accessor on a server side implementation and
// flattens its declared return shape into the emitted items. Template
// variables and link name parameters are passed as zero values.
func Emit(ctx context.Context, impl any, m *Method) ([]any, error) {
	method := reflect.ValueOf(impl).MethodByName(m.Name)
	if !method.IsValid() {
		return nil, errors.NewContractError("%T has no method named %s", impl, m.Name)
	}

	ft := method.Type()
	in := make([]reflect.Value, ft.NumIn())
	in[0] = reflect.ValueOf(ctx)
	for i := 1; i < ft.NumIn(); i++ {
		in[i] = reflect.Zero(ft.In(i))
	}

	out := method.Call(in)

	if errValue := out[1]; !errValue.IsNil() {
		return nil, errValue.Interface().(error)
	}

	return FromShape(m.Returns, out[0].Interface())
}

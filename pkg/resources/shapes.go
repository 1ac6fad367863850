package resources

import (
	"fmt"
	"reflect"

	"github.com/diwise/halgraph/pkg/errors"
)

// Shape is the declared form of an accessor's result: one value, an optional
// value, a list or an open ended stream (iter.Seq2[E, error]).
type Shape int

const (
	ShapeSingle Shape = iota
	ShapeOptional
	ShapeList
	ShapeStream
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeOptional:
		return "optional"
	case ShapeList:
		return "list"
	case ShapeStream:
		return "stream"
	default:
		return "unknown"
	}
}

var errorType = reflect.TypeFor[error]()
var optionalType = reflect.TypeFor[optionalShape]()

type converter struct {
	// to builds a value of the declared type from emitted items
	to func(t reflect.Type, items []reflect.Value) (reflect.Value, error)
	// from flattens a value of the declared type into emitted items
	from func(v reflect.Value) ([]any, error)
}

var converters = map[Shape]converter{
	ShapeSingle:   {to: toSingle, from: fromSingle},
	ShapeOptional: {to: toOptional, from: fromOptional},
	ShapeList:     {to: toList, from: fromList},
	ShapeStream:   {to: toStream, from: fromStream},
}

// ShapeOf classifies a declared return type and unwraps the element type
// that is emitted by the accessor.
func ShapeOf(t reflect.Type) (Shape, reflect.Type) {
	if t.Implements(optionalType) {
		return ShapeOptional, reflect.Zero(t).Interface().(optionalShape).elementType()
	}

	if isStream(t) {
		return ShapeStream, t.In(0).In(0)
	}

	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		return ShapeList, t.Elem()
	}

	return ShapeSingle, t
}

func isStream(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}

	yield := t.In(0)
	return yield.Kind() == reflect.Func &&
		yield.NumIn() == 2 && yield.In(1) == errorType &&
		yield.NumOut() == 1 && yield.Out(0).Kind() == reflect.Bool
}

// ToShape converts emitted items into a value of the declared type t.
func ToShape(t reflect.Type, items []any) (any, error) {
	shape, elem := ShapeOf(t)

	values := make([]reflect.Value, 0, len(items))
	for _, item := range items {
		v, err := elementValue(elem, item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	v, err := converters[shape].to(t, values)
	if err != nil {
		return nil, err
	}

	return v.Interface(), nil
}

// FromShape flattens a value of a declared return type into its items.
func FromShape(t reflect.Type, value any) ([]any, error) {
	shape, _ := ShapeOf(t)

	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return nil, nil
	}

	return converters[shape].from(v)
}

func elementValue(elem reflect.Type, item any) (reflect.Value, error) {
	if item == nil {
		return reflect.Zero(elem), nil
	}

	v := reflect.ValueOf(item)
	if v.Type().AssignableTo(elem) {
		return v, nil
	}

	if v.Type().ConvertibleTo(elem) {
		return v.Convert(elem), nil
	}

	return reflect.Value{}, errors.NewContractError("value of type %s cannot be emitted as %s", v.Type(), elem)
}

func toSingle(t reflect.Type, items []reflect.Value) (reflect.Value, error) {
	if len(items) == 0 {
		return reflect.Value{}, errors.NewNotFoundError(fmt.Sprintf("no %s value available", t))
	}

	v := reflect.New(t).Elem()
	v.Set(items[0])
	return v, nil
}

func fromSingle(v reflect.Value) ([]any, error) {
	if isNil(v) {
		return nil, nil
	}
	return []any{v.Interface()}, nil
}

func toOptional(t reflect.Type, items []reflect.Value) (reflect.Value, error) {
	if len(items) == 0 {
		return reflect.Zero(t), nil
	}

	o := reflect.Zero(t).Interface().(optionalShape)
	return reflect.ValueOf(o.withValue(items[0])), nil
}

func fromOptional(v reflect.Value) ([]any, error) {
	value, ok := v.Interface().(optionalShape).anyValue()
	if !ok {
		return nil, nil
	}
	return []any{value}, nil
}

func toList(t reflect.Type, items []reflect.Value) (reflect.Value, error) {
	list := reflect.MakeSlice(t, 0, len(items))
	return reflect.Append(list, items...), nil
}

func fromList(v reflect.Value) ([]any, error) {
	items := make([]any, 0, v.Len())
	for i := range v.Len() {
		items = append(items, v.Index(i).Interface())
	}
	return items, nil
}

func toStream(t reflect.Type, items []reflect.Value) (reflect.Value, error) {
	noError := reflect.Zero(errorType)

	seq := reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		for _, item := range items {
			if !yield.Call([]reflect.Value{item, noError})[0].Bool() {
				break
			}
		}
		return nil
	})

	return seq, nil
}

func fromStream(v reflect.Value) ([]any, error) {
	if v.IsNil() {
		return nil, nil
	}

	var items []any
	var streamErr error

	yieldType := v.Type().In(0)
	yield := reflect.MakeFunc(yieldType, func(args []reflect.Value) []reflect.Value {
		if !args[1].IsNil() {
			streamErr = args[1].Interface().(error)
			return []reflect.Value{reflect.ValueOf(false)}
		}
		items = append(items, args[0].Interface())
		return []reflect.Value{reflect.ValueOf(true)}
	})

	v.Call([]reflect.Value{yield})

	if streamErr != nil {
		return nil, streamErr
	}

	return items, nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

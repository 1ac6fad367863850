package resources

import "reflect"

// Optional is the declared return shape for accessors that may legitimately
// yield nothing.
type Optional[E any] struct {
	value   E
	present bool
}

func Some[E any](value E) Optional[E] {
	return Optional[E]{value: value, present: true}
}

func None[E any]() Optional[E] {
	return Optional[E]{}
}

func (o Optional[E]) Get() (E, bool) {
	return o.value, o.present
}

func (o Optional[E]) IsPresent() bool {
	return o.present
}

func (o Optional[E]) OrElse(fallback E) E {
	if o.present {
		return o.value
	}
	return fallback
}

type optionalShape interface {
	elementType() reflect.Type
	anyValue() (any, bool)
	withValue(v reflect.Value) any
}

func (o Optional[E]) elementType() reflect.Type {
	return reflect.TypeFor[E]()
}

func (o Optional[E]) anyValue() (any, bool) {
	return o.value, o.present
}

func (o Optional[E]) withValue(v reflect.Value) any {
	var e E
	reflect.ValueOf(&e).Elem().Set(v)
	return Some(e)
}

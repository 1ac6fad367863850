package hal

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/yosida95/uritemplate/v3"
)

const (
	ContentType      string = "application/hal+json"
	ErrorContentType string = "application/vnd.error+json"
)

const (
	RelSelf      string = "self"
	RelAbout     string = "about"
	RelCanonical string = "canonical"
	RelVia       string = "via"
	RelErrors    string = "errors"
	RelItem      string = "item"
	RelNext      string = "next"
	RelPrev      string = "prev"
)

// Link is a HAL link object. A templated link contains {var} placeholders
// and must be expanded before it can be followed.
type Link struct {
	Href      string `json:"href"`
	Templated bool   `json:"templated,omitempty"`
	Name      string `json:"name,omitempty"`
	Title     string `json:"title,omitempty"`
}

type LinkDecoratorFunc func(l *Link)

func NewLink(href string, decorators ...LinkDecoratorFunc) Link {
	l := Link{
		Href:      href,
		Templated: ContainsPlaceholders(href),
	}

	for _, decorator := range decorators {
		decorator(&l)
	}

	return l
}

func Name(name string) LinkDecoratorFunc {
	return func(l *Link) { l.Name = name }
}

func Title(title string) LinkDecoratorFunc {
	return func(l *Link) { l.Title = title }
}

var placeholderExpr = regexp.MustCompile(`\{[^{}]+\}`)

// ContainsPlaceholders reports whether href holds at least one unexpanded
// URI template expression.
func ContainsPlaceholders(href string) bool {
	return placeholderExpr.MatchString(href)
}

func (l Link) IsZero() bool {
	return l.Href == ""
}

// Variables returns the names of the template variables in the href, in the
// order they first appear. A link that is not templated has no variables.
func (l Link) Variables() []string {
	if !l.Templated {
		return nil
	}

	t, err := uritemplate.New(l.Href)
	if err != nil {
		return nil
	}

	return t.Varnames()
}

// Expand resolves the link template with the supplied values and returns a
// concrete link. Variables that are missing or nil are dropped from the
// expansion, as RFC 6570 prescribes for undefined values.
func (l Link) Expand(values map[string]any) (Link, error) {
	if !l.Templated {
		return l, nil
	}

	t, err := uritemplate.New(l.Href)
	if err != nil {
		return Link{}, fmt.Errorf("invalid link template %q: %w", l.Href, err)
	}

	vars := uritemplate.Values{}
	for name, value := range values {
		if v, ok := templateValue(value); ok {
			vars.Set(name, v)
		}
	}

	href, err := t.Expand(vars)
	if err != nil {
		return Link{}, fmt.Errorf("failed to expand link template %q: %w", l.Href, err)
	}

	expanded := l
	expanded.Href = href
	expanded.Templated = false

	return expanded, nil
}

func templateValue(value any) (uritemplate.Value, bool) {
	if value == nil {
		return uritemplate.Value{}, false
	}

	switch v := value.(type) {
	case string:
		return uritemplate.String(v), true
	case []string:
		return uritemplate.List(v...), true
	case fmt.Stringer:
		return uritemplate.String(v.String()), true
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return uritemplate.Value{}, false
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			items = append(items, fmt.Sprint(rv.Index(i).Interface()))
		}
		return uritemplate.List(items...), true
	}

	return uritemplate.String(fmt.Sprint(rv.Interface())), true
}

func (l *Link) UnmarshalJSON(data []byte) error {
	type link Link

	var decoded link
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to unmarshal link: %w", err)
	}

	*l = Link(decoded)
	l.Templated = ContainsPlaceholders(l.Href)

	return nil
}

package hal

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// relations is an insertion ordered multimap from relation to values
type relations[V any] struct {
	keys   []string
	values map[string][]V
}

func (r *relations[V]) add(rel string, values ...V) {
	if r.values == nil {
		r.values = map[string][]V{}
	}

	if _, ok := r.values[rel]; !ok {
		r.keys = append(r.keys, rel)
	}

	r.values[rel] = append(r.values[rel], values...)
}

func (r relations[V]) get(rel string) []V {
	return slices.Clone(r.values[rel])
}

func (r relations[V]) has(rel string) bool {
	_, ok := r.values[rel]
	return ok
}

// Document is the in-memory representation of a single HAL resource.
type Document struct {
	self     *Link
	state    map[string]any
	links    relations[Link]
	embedded relations[*Document]
}

type DocumentDecoratorFunc func(d *Document)

func NewDocument(decorators ...DocumentDecoratorFunc) *Document {
	d := &Document{
		state: map[string]any{},
	}

	for _, decorator := range decorators {
		decorator(d)
	}

	return d
}

func Self(link Link) DocumentDecoratorFunc {
	return func(d *Document) {
		d.self = &link
	}
}

func State(state map[string]any) DocumentDecoratorFunc {
	return func(d *Document) {
		for k, v := range state {
			d.state[k] = v
		}
	}
}

func Property(name string, value any) DocumentDecoratorFunc {
	return func(d *Document) {
		d.state[name] = value
	}
}

func Links(rel string, links ...Link) DocumentDecoratorFunc {
	return func(d *Document) {
		if rel == RelSelf && len(links) > 0 && d.self == nil {
			self := links[0]
			d.self = &self
			links = links[1:]
			if len(links) == 0 {
				return
			}
		}
		d.links.add(rel, links...)
	}
}

func Embedded(rel string, docs ...*Document) DocumentDecoratorFunc {
	return func(d *Document) {
		d.embedded.add(rel, docs...)
	}
}

// StateFrom converts any JSON serializable value into document state. The
// value must serialize to a JSON object (or null, yielding an empty state).
func StateFrom(value any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	state := map[string]any{}
	if string(b) == "null" {
		return state, nil
	}

	if err = decodeState(b, &state); err != nil {
		return nil, fmt.Errorf("state of type %T is not a json object: %w", value, err)
	}

	return state, nil
}

func (d *Document) SelfLink() *Link {
	if d.self == nil {
		return nil
	}

	self := *d.self
	return &self
}

func (d *Document) State() map[string]any {
	return maps.Clone(d.state)
}

func (d *Document) HasState() bool {
	return len(d.state) > 0
}

// DecodeState unmarshals the document state into v.
func (d *Document) DecodeState(v any) error {
	b, err := json.Marshal(d.state)
	if err != nil {
		return fmt.Errorf("failed to marshal document state: %w", err)
	}

	if err = json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to unmarshal document state into %T: %w", v, err)
	}

	return nil
}

func (d *Document) Links(rel string) []Link {
	if rel == RelSelf && d.self != nil {
		return append([]Link{*d.self}, d.links.get(rel)...)
	}
	return d.links.get(rel)
}

func (d *Document) HasLinks(rel string) bool {
	return d.links.has(rel)
}

func (d *Document) LinkRelations() []string {
	return slices.Clone(d.links.keys)
}

func (d *Document) Embedded(rel string) []*Document {
	return d.embedded.get(rel)
}

func (d *Document) HasEmbedded(rel string) bool {
	return d.embedded.has(rel)
}

func (d *Document) EmbeddedRelations() []string {
	return slices.Clone(d.embedded.keys)
}

func (d *Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid document: %s>", err.Error())
	}
	return string(b)
}

// IsCustomRelation reports whether the relation carries a namespace prefix,
// such as "acme:widgets".
func IsCustomRelation(rel string) bool {
	return strings.Contains(rel, ":")
}

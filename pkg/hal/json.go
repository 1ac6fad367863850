package hal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

const (
	linksKey    string = "_links"
	embeddedKey string = "_embedded"
)

func NewDocumentFromJSON(body []byte) (*Document, error) {
	d := &Document{}

	if err := d.UnmarshalJSON(body); err != nil {
		return nil, err
	}

	return d, nil
}

// MarshalJSON writes the document as a HAL object. Relations keep their
// insertion order, state properties are sorted by name. A relation holding a
// single value is written as an object, several values as an array.
func (d *Document) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	first := true
	field := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	if d.self != nil || len(d.links.keys) > 0 {
		links, err := d.marshalLinks()
		if err != nil {
			return nil, err
		}
		field(linksKey, links)
	}

	if len(d.embedded.keys) > 0 {
		embedded, err := d.marshalEmbedded()
		if err != nil {
			return nil, err
		}
		field(embeddedKey, embedded)
	}

	keys := make([]string, 0, len(d.state))
	for k := range d.state {
		if k == linksKey || k == embeddedKey {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		value, err := json.Marshal(d.state[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state property %q: %w", k, err)
		}
		field(k, value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (d *Document) marshalLinks() ([]byte, error) {
	entries := make([][2][]byte, 0, len(d.links.keys)+1)

	if d.self != nil {
		self, err := json.Marshal(d.self)
		if err != nil {
			return nil, err
		}
		entries = append(entries, [2][]byte{[]byte(`"self"`), self})
	}

	for _, rel := range d.links.keys {
		value, err := marshalOneOrMany(d.links.values[rel])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal links for relation %q: %w", rel, err)
		}
		key, _ := json.Marshal(rel)
		entries = append(entries, [2][]byte{key, value})
	}

	return joinObject(entries), nil
}

func (d *Document) marshalEmbedded() ([]byte, error) {
	entries := make([][2][]byte, 0, len(d.embedded.keys))

	for _, rel := range d.embedded.keys {
		value, err := marshalOneOrMany(d.embedded.values[rel])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedded resources for relation %q: %w", rel, err)
		}
		key, _ := json.Marshal(rel)
		entries = append(entries, [2][]byte{key, value})
	}

	return joinObject(entries), nil
}

func marshalOneOrMany[V any](values []V) ([]byte, error) {
	if len(values) == 1 {
		return json.Marshal(values[0])
	}
	return json.Marshal(values)
}

func joinObject(entries [][2][]byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	for idx, e := range entries {
		if idx > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e[0])
		buf.WriteByte(':')
		buf.Write(e[1])
	}

	buf.WriteByte('}')
	return buf.Bytes()
}

func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Document{state: map[string]any{}}

	return decodeObject(data, func(key string, value json.RawMessage) error {
		switch key {
		case linksKey:
			return d.unmarshalLinks(value)
		case embeddedKey:
			return d.unmarshalEmbedded(value)
		}

		var v any
		if err := decodeState(value, &v); err != nil {
			return fmt.Errorf("failed to unmarshal state property %q: %w", key, err)
		}
		d.state[key] = v

		return nil
	})
}

func (d *Document) unmarshalLinks(data json.RawMessage) error {
	return decodeObject(data, func(rel string, value json.RawMessage) error {
		return decodeOneOrMany(value, func(raw json.RawMessage) error {
			var l Link
			if err := json.Unmarshal(raw, &l); err != nil {
				return fmt.Errorf("invalid link for relation %q: %w", rel, err)
			}

			if rel == RelSelf && d.self == nil {
				d.self = &l
				return nil
			}

			d.links.add(rel, l)
			return nil
		})
	})
}

func (d *Document) unmarshalEmbedded(data json.RawMessage) error {
	return decodeObject(data, func(rel string, value json.RawMessage) error {
		return decodeOneOrMany(value, func(raw json.RawMessage) error {
			e, err := NewDocumentFromJSON(raw)
			if err != nil {
				return fmt.Errorf("invalid embedded resource for relation %q: %w", rel, err)
			}

			d.embedded.add(rel, e)
			return nil
		})
	})
}

// decodeObject walks the members of a json object in document order
func decodeObject(data []byte, member func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read json object: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a json object but found %v", tok)
	}

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read object key: %w", err)
		}

		key, _ := tok.(string)

		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to read value of %q: %w", key, err)
		}

		if err = member(key, value); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

func decodeOneOrMany(data json.RawMessage, item func(json.RawMessage) error) error {
	trimmed := bytes.TrimSpace(data)

	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return item(trimmed)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}

	for _, i := range items {
		if err := item(i); err != nil {
			return err
		}
	}

	return nil
}

func decodeState(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

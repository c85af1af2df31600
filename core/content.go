package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content is a tagged variant: Raw bytes, a Symbol, a Relation, or a Composite
// of other Content. The core is pre-linguistic and never assumes textual form;
// components interact with Content only through this capability set.
type Content interface {
	isContent()
	// Serialize renders Content to a byte form suitable for persistence or
	// for handing to the embedding collaborator.
	Serialize() ([]byte, error)
	// SummarizeForLog renders a short, human-readable description for audit
	// trails and crash logs. It must not assume the content is textual.
	SummarizeForLog() string
}

// Raw is an opaque byte payload, e.g. sensor data or a serialized external blob.
type Raw struct {
	Data []byte
}

func (Raw) isContent() {}

func (r Raw) Serialize() ([]byte, error) {
	return r.Data, nil
}

func (r Raw) SummarizeForLog() string {
	return fmt.Sprintf("raw(%d bytes)", len(r.Data))
}

// Symbol is a named, addressable unit of content.
type Symbol struct {
	ID   string
	Data string
}

func (Symbol) isContent() {}

func (s Symbol) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

func (s Symbol) SummarizeForLog() string {
	return fmt.Sprintf("symbol(%s)", s.ID)
}

// Relation is a subject-predicate-object triple.
type Relation struct {
	Subject   string
	Predicate string
	Object    string
}

func (Relation) isContent() {}

func (r Relation) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

func (r Relation) SummarizeForLog() string {
	return fmt.Sprintf("relation(%s %s %s)", r.Subject, r.Predicate, r.Object)
}

// Composite is an ordered list of Content, used when a candidate bundles
// several units together (e.g. a perception plus its emotional tag).
type Composite struct {
	Items []Content
}

func (Composite) isContent() {}

func (c Composite) Serialize() ([]byte, error) {
	parts := make([]json.RawMessage, len(c.Items))
	for i, item := range c.Items {
		b, err := EncodeContent(item)
		if err != nil {
			return nil, fmt.Errorf("composite item %d: %w", i, err)
		}
		parts[i] = b
	}
	return json.Marshal(parts)
}

func (c Composite) SummarizeForLog() string {
	parts := make([]string, len(c.Items))
	for i, item := range c.Items {
		parts[i] = item.SummarizeForLog()
	}
	return "composite[" + strings.Join(parts, ", ") + "]"
}

var (
	_ Content = Raw{}
	_ Content = Symbol{}
	_ Content = Relation{}
	_ Content = Composite{}
)

// contentEnvelope tags a serialized Content with its variant so it can be
// reconstructed after a round trip through the stream service or the
// long-term store.
type contentEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeContent serializes Content with a variant tag attached.
func EncodeContent(c Content) ([]byte, error) {
	var kind string
	switch c.(type) {
	case Raw:
		kind = "raw"
	case Symbol:
		kind = "symbol"
	case Relation:
		kind = "relation"
	case Composite:
		kind = "composite"
	default:
		return nil, fmt.Errorf("unknown content type %T", c)
	}
	data, err := c.Serialize()
	if err != nil {
		return nil, err
	}
	if kind == "raw" {
		// Raw.Serialize returns the bytes directly; wrap for JSON transport.
		data, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(contentEnvelope{Kind: kind, Data: data})
}

// DecodeContent reverses EncodeContent.
func DecodeContent(b []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode content envelope: %w", err)
	}
	switch env.Kind {
	case "raw":
		var data []byte
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, err
		}
		return Raw{Data: data}, nil
	case "symbol":
		var s Symbol
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "relation":
		var r Relation
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case "composite":
		var rawItems []json.RawMessage
		if err := json.Unmarshal(env.Data, &rawItems); err != nil {
			return nil, err
		}
		items := make([]Content, 0, len(rawItems))
		for _, ri := range rawItems {
			item, err := DecodeContent(ri)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return Composite{Items: items}, nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", env.Kind)
	}
}

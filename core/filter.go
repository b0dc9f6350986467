package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Filter describes one query against one collection together with the
// relations to attach and the shaping to apply to every result.
type Filter struct {
	Collection             string         `json:"collection,omitempty" yaml:"collection,omitempty" mapstructure:"collection"`
	Where                  map[string]any `json:"where,omitempty" yaml:"where,omitempty" mapstructure:"where"`
	Fields                 []Field        `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
	Include                Includes       `json:"include,omitempty" yaml:"include,omitempty" mapstructure:"include"`
	Exclude                []string       `json:"exclude,omitempty" yaml:"exclude,omitempty" mapstructure:"exclude"`
	Sort                   Sort           `json:"sort,omitempty" yaml:"sort,omitempty" mapstructure:"sort"`
	Skip                   int64          `json:"skip,omitempty" yaml:"skip,omitempty" mapstructure:"skip"`
	Limit                  int64          `json:"limit,omitempty" yaml:"limit,omitempty" mapstructure:"limit"`
	IncludeRemainingFields bool           `json:"includeRemainingFields,omitempty" yaml:"includeRemainingFields,omitempty" mapstructure:"includeRemainingFields"`
}

// RelationKind names a join strategy.
type RelationKind string

const (
	RelBelongsTo           RelationKind = "belongsTo"
	RelHasOne              RelationKind = "hasOne"
	RelHasMany             RelationKind = "hasMany"
	RelHasAndBelongsToMany RelationKind = "hasAndBelongsToMany"
	RelReferencesMany      RelationKind = "referencesMany"
)

// Relation describes how to fetch the related documents of an instance.
// Scope is a partial filter applied to the related collection; its where
// clause is merged under the join predicate.
type Relation struct {
	Kind       RelationKind `json:"relation" yaml:"relation" mapstructure:"relation"`
	Collection string       `json:"collection" yaml:"collection" mapstructure:"collection"`
	ForeignKey string       `json:"foreignKey" yaml:"foreignKey" mapstructure:"foreignKey"`
	PrimaryKey string       `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty" mapstructure:"primaryKey"`
	Scope      *Filter      `json:"scope,omitempty" yaml:"scope,omitempty" mapstructure:"scope"`

	// hasAndBelongsToMany only
	Through            string  `json:"through,omitempty" yaml:"through,omitempty" mapstructure:"through"`
	ThroughScope       *Filter `json:"throughScope,omitempty" yaml:"throughScope,omitempty" mapstructure:"throughScope"`
	RelationKey        string  `json:"relationKey,omitempty" yaml:"relationKey,omitempty" mapstructure:"relationKey"`
	RelationPrimaryKey string  `json:"relationPrimaryKey,omitempty" yaml:"relationPrimaryKey,omitempty" mapstructure:"relationPrimaryKey"`
}

// Include attaches the result of a relation under Field.
type Include struct {
	Field    string
	Relation *Relation
}

// Includes keeps include entries in declaration order.
type Includes []Include

// Get returns the relation attached under field.
func (in Includes) Get(field string) (*Relation, bool) {
	for _, v := range in {
		if v.Field == field {
			return v.Relation, true
		}
	}
	return nil, false
}

func (in *Includes) UnmarshalJSON(b []byte) error {
	var list Includes
	err := decodeObject(b, func(key string, raw json.RawMessage) error {
		var rel Relation
		if err := json.Unmarshal(raw, &rel); err != nil {
			return fmt.Errorf("include '%s': %w", key, err)
		}
		list = append(list, Include{Field: key, Relation: &rel})
		return nil
	})
	if err != nil {
		return err
	}
	*in = list
	return nil
}

func (in Includes) MarshalJSON() ([]byte, error) {
	return encodeObject(len(in), func(i int) (string, any) {
		return in[i].Field, in[i].Relation
	})
}

func (in *Includes) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: include must be a mapping", n.Line)
	}
	var list Includes
	for i := 0; i+1 < len(n.Content); i += 2 {
		var rel Relation
		if err := n.Content[i+1].Decode(&rel); err != nil {
			return fmt.Errorf("include '%s': %w", n.Content[i].Value, err)
		}
		list = append(list, Include{Field: n.Content[i].Value, Relation: &rel})
	}
	*in = list
	return nil
}

func (in Includes) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range in {
		var val yaml.Node
		if err := val.Encode(v.Relation); err != nil {
			return nil, err
		}
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: v.Field}, &val)
	}
	return n, nil
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort keys. It is written as an object such as
// {"createdAt": -1, "name": "asc"} whose key order is kept.
type Sort []SortField

func (s *Sort) UnmarshalJSON(b []byte) error {
	var list Sort
	err := decodeObject(b, func(key string, raw json.RawMessage) error {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		desc, err := parseDirection(v)
		if err != nil {
			return fmt.Errorf("sort '%s': %w", key, err)
		}
		list = append(list, SortField{Field: key, Desc: desc})
		return nil
	})
	if err != nil {
		return err
	}
	*s = list
	return nil
}

func (s Sort) MarshalJSON() ([]byte, error) {
	return encodeObject(len(s), func(i int) (string, any) {
		return s[i].Field, s[i].Direction()
	})
}

func (s *Sort) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sort must be a mapping", n.Line)
	}
	var list Sort
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v any
		if err := n.Content[i+1].Decode(&v); err != nil {
			return err
		}
		desc, err := parseDirection(v)
		if err != nil {
			return fmt.Errorf("sort '%s': %w", n.Content[i].Value, err)
		}
		list = append(list, SortField{Field: n.Content[i].Value, Desc: desc})
	}
	*s = list
	return nil
}

func (s Sort) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range s {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: v.Field},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(v.Direction())})
	}
	return n, nil
}

// Direction returns 1 for ascending and -1 for descending.
func (sf SortField) Direction() int {
	if sf.Desc {
		return -1
	}
	return 1
}

func parseDirection(v any) (bool, error) {
	switch d := v.(type) {
	case float64:
		return d < 0, nil
	case int:
		return d < 0, nil
	case int64:
		return d < 0, nil
	case string:
		switch strings.ToLower(d) {
		case "asc", "ascending":
			return false, nil
		case "desc", "descending":
			return true, nil
		}
	}
	return false, fmt.Errorf("invalid direction %v", v)
}

// DecodeFilter decodes a loosely typed filter, such as one read from a
// config file or built by hand, into a Filter. Include entries of a Go map
// have no order and are resolved in key order.
func DecodeFilter(m map[string]any) (*Filter, error) {
	var f Filter
	dc := &mapstructure.DecoderConfig{
		DecodeHook:       filterDecodeHook,
		WeaklyTypedInput: true,
		Result:           &f,
	}
	dec, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}
	return &f, nil
}

var (
	fieldType    = reflect.TypeOf(Field{})
	includesType = reflect.TypeOf(Includes{})
	sortType     = reflect.TypeOf(Sort{})
)

func filterDecodeHook(from, to reflect.Type, data any) (any, error) {
	switch to {
	case fieldType:
		return NewField(data)

	case includesType:
		m, ok := data.(map[string]any)
		if !ok {
			return data, nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		list := make(Includes, 0, len(keys))
		for _, k := range keys {
			rm, ok := m[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("include '%s' must be an object", k)
			}
			var rel Relation
			dc := &mapstructure.DecoderConfig{
				DecodeHook:       filterDecodeHook,
				WeaklyTypedInput: true,
				Result:           &rel,
			}
			dec, err := mapstructure.NewDecoder(dc)
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(rm); err != nil {
				return nil, fmt.Errorf("include '%s': %w", k, err)
			}
			list = append(list, Include{Field: k, Relation: &rel})
		}
		return list, nil

	case sortType:
		m, ok := data.(map[string]any)
		if !ok {
			return data, nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		list := make(Sort, 0, len(keys))
		for _, k := range keys {
			desc, err := parseDirection(m[k])
			if err != nil {
				return nil, fmt.Errorf("sort '%s': %w", k, err)
			}
			list = append(list, SortField{Field: k, Desc: desc})
		}
		return list, nil
	}
	return data, nil
}

// decodeObject walks the members of a JSON object in document order.
func decodeObject(b []byte, fn func(key string, raw json.RawMessage) error) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a json object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// encodeObject writes n members as a JSON object in the given order.
func encodeObject(n int, member func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		k, v := member(i)
		if i != 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// subFilter builds the sub-query of a relation: the scope's settings aimed at
// coll, with join laid over the scope's where clause.
func subFilter(scope *Filter, coll string, join map[string]any) *Filter {
	f := &Filter{}
	if scope != nil {
		*f = *scope
	}
	f.Collection = coll

	where := make(map[string]any, len(f.Where)+len(join))
	for k, v := range f.Where {
		where[k] = v
	}
	for k, v := range join {
		where[k] = v
	}
	f.Where = where
	return f
}

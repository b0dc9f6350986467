package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dosco/docfind/core/internal/docpath"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FieldKind tells how a Field produces its output value.
type FieldKind int

const (
	// FieldSkip produces nothing. Map descriptors missing input or in, and
	// values that are neither a path nor a map descriptor, decode to it.
	FieldSkip FieldKind = iota

	// FieldBare copies a top-level key as is.
	FieldBare

	// FieldLiteral assigns a fixed value (resolve: false).
	FieldLiteral

	// FieldPath reads a path from the result. Paths carrying the wildcard
	// marker fan out over arrays.
	FieldPath

	// FieldMap regroups and renames the elements of input arrays.
	FieldMap
)

// FieldTypeLocation coerces values into {lat, lon} objects.
const FieldTypeLocation = "location"

const mapOpName = "map"

// Field is one entry of a filter's field list.
type Field struct {
	Kind FieldKind

	// Name is the output key.
	Name string

	// Path is the source path of FieldBare and FieldPath.
	Path string

	// Value is the literal of FieldLiteral. It plays no part in the plan
	// and is left out of the plan cache key.
	Value any `hash:"ignore"`

	// Map is the descriptor of FieldMap.
	Map *MapOp

	Type       string
	MakeUnique bool
	UniqBy     string

	// Resolve keeps a plain FieldPath out of the store projection.
	Resolve bool
}

// MapOp builds one object per element of the arrays named in Input. In maps
// an input key to {outputKey: sourcePath}.
type MapOp struct {
	Input []string                     `mapstructure:"input"`
	In    map[string]map[string]string `mapstructure:"in"`
}

// BareField selects a top-level key under its own name.
func BareField(path string) Field {
	return Field{Kind: FieldBare, Name: path, Path: path}
}

// PathField reads path into name.
func PathField(name, path string) Field {
	return Field{Kind: FieldPath, Name: name, Path: path}
}

// LiteralField assigns val to name.
func LiteralField(name string, val any) Field {
	return Field{Kind: FieldLiteral, Name: name, Value: val}
}

// MapField assigns the output of op to name.
func MapField(name string, op MapOp) Field {
	return Field{Kind: FieldMap, Name: name, Map: &op}
}

// Dynamic reports whether the field reads a wildcard path.
func (f Field) Dynamic() bool {
	return f.Kind == FieldPath && docpath.IsDynamic(f.Path)
}

type fieldSpec struct {
	Field      string `mapstructure:"field"`
	Value      any    `mapstructure:"value"`
	Resolve    *bool  `mapstructure:"resolve"`
	Type       string `mapstructure:"type"`
	MakeUnique bool   `mapstructure:"makeUnique"`
	UniqBy     string `mapstructure:"uniqBy"`
}

// NewField classifies a decoded field descriptor: a string is a bare path,
// an object is a literal, a path or a map descriptor.
func NewField(v any) (Field, error) {
	switch val := v.(type) {
	case Field:
		return val, nil
	case string:
		return BareField(val), nil
	case map[string]any:
		return newObjectField(val)
	default:
		return Field{}, fmt.Errorf("field must be a string or an object, got %T", v)
	}
}

func newObjectField(m map[string]any) (Field, error) {
	var fs fieldSpec
	if err := mapstructure.WeakDecode(m, &fs); err != nil {
		return Field{}, fmt.Errorf("field: %w", err)
	}
	if fs.Field == "" {
		return Field{}, errors.New("field: output name is required")
	}

	f := Field{
		Name:       fs.Field,
		Type:       fs.Type,
		MakeUnique: fs.MakeUnique,
		UniqBy:     fs.UniqBy,
	}

	if fs.Resolve != nil && !*fs.Resolve {
		f.Kind = FieldLiteral
		f.Value = fs.Value
		return f, nil
	}

	switch val := fs.Value.(type) {
	case string:
		f.Kind = FieldPath
		f.Path = val
		f.Resolve = fs.Resolve != nil && *fs.Resolve

	case map[string]any:
		if op, _ := val["op"].(string); op != mapOpName {
			break
		}
		if val["input"] == nil || val["in"] == nil {
			break
		}
		var op MapOp
		if err := mapstructure.WeakDecode(val, &op); err != nil {
			return Field{}, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		f.Kind = FieldMap
		f.Map = &op
	}
	return f, nil
}

func (f *Field) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	nf, err := NewField(v)
	if err != nil {
		return err
	}
	*f = nf
	return nil
}

func (f *Field) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	nf, err := NewField(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*f = nf
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.descriptor())
}

func (f Field) MarshalYAML() (any, error) {
	return f.descriptor(), nil
}

// descriptor rebuilds the wire form of the field.
func (f Field) descriptor() any {
	if f.Kind == FieldBare {
		return f.Path
	}

	d := map[string]any{"field": f.Name}
	switch f.Kind {
	case FieldLiteral:
		d["value"] = f.Value
		d["resolve"] = false
	case FieldPath:
		d["value"] = f.Path
		if f.Resolve {
			d["resolve"] = true
		}
	case FieldMap:
		d["value"] = map[string]any{"op": mapOpName, "input": f.Map.Input, "in": f.Map.In}
	case FieldSkip:
		if f.Value != nil {
			d["value"] = f.Value
		}
	}

	if f.Type != "" {
		d["type"] = f.Type
	}
	if f.MakeUnique {
		d["makeUnique"] = true
	}
	if f.UniqBy != "" {
		d["uniqBy"] = f.UniqBy
	}
	return d
}

package core

import (
	"github.com/dosco/docfind/core/internal/docpath"
)

// formatter shapes fetched documents according to the field list of the
// filter being run.
type formatter struct {
	fields    []Field
	ids       IdentifierChecker
	idField   string
	remaining bool
}

func (df *DocFind) newFormatter(f *Filter) *formatter {
	return &formatter{
		fields:    f.Fields,
		ids:       df.ids,
		idField:   df.conf.IDField,
		remaining: f.IncludeRemainingFields,
	}
}

func (fm *formatter) formatAll(docs []Document) ([]Document, error) {
	out := make([]Document, len(docs))
	for i := range docs {
		d, err := fm.format(docs[i])
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// format builds the output document of doc. Fields are applied in order and
// later fields overwrite earlier ones sharing the same name.
func (fm *formatter) format(doc Document) (Document, error) {
	var out Document
	if fm.remaining {
		out = make(Document, len(doc)+len(fm.fields))
		for k, v := range doc {
			out[k] = v
		}
	} else {
		out = make(Document, len(fm.fields))
	}

	for _, f := range fm.fields {
		switch f.Kind {
		case FieldBare:
			if v, ok := doc[f.Path]; ok {
				out[f.Name] = v
				break
			}
			assign(out, f.Name, docpath.Get(doc, f.Path))

		case FieldLiteral:
			out[f.Name] = f.Value

		case FieldPath:
			if f.Dynamic() {
				v, err := fm.extract(f, doc)
				if err != nil {
					return nil, err
				}
				assign(out, f.Name, v)
				break
			}
			v := docpath.Get(doc, f.Path)
			if f.Type == FieldTypeLocation {
				out[f.Name] = toLocation(v)
				break
			}
			assign(out, f.Name, v)

		case FieldMap:
			out[f.Name] = mapValues(f.Map, doc)

		default:
			continue
		}

		if f.UniqBy != "" {
			if list, ok := toSlice(out[f.Name]); ok {
				out[f.Name] = uniqByString(list, f.UniqBy)
			}
		}
	}
	return out, nil
}

// extract collects the values of a dynamic path and applies the uniqueness
// and location options of f when the result is a list. Other results are
// returned untouched.
func (fm *formatter) extract(f Field, doc Document) (any, error) {
	v, err := docpath.Extract(f.Path, doc)
	if err != nil {
		return nil, err
	}
	values, ok := toSlice(v)
	if !ok {
		return v, nil
	}

	if f.MakeUnique && len(values) != 0 {
		values = fm.makeUnique(f, values)
	}

	if f.Type == FieldTypeLocation {
		locs := make([]any, len(values))
		for i := range values {
			locs[i] = toLocation(values[i])
		}
		values = locs
	}
	return values, nil
}

// makeUnique dedupes by the kind of the first value: store identifiers by
// their string form, objects by the uniqBy path (the id field by default),
// everything else by value.
func (fm *formatter) makeUnique(f Field, values []any) []any {
	first := values[0]

	if fm.ids != nil && fm.ids.IsIdentifier(first) {
		return uniqBy(values, func(v any) any { return stringifyID(v) })
	}

	if _, ok := first.(map[string]any); ok {
		path := f.UniqBy
		if path == "" {
			path = fm.idField
		}
		return uniqBy(values, func(v any) any {
			return dedupKey(docpath.Get(v, path))
		})
	}

	return uniqBy(values, dedupKey)
}

// uniqByString writes the string form of the value at path back into every
// element and keeps the first element of each string. Elements are copied
// before they are changed.
func uniqByString(values []any, path string) []any {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		s := stringifyID(docpath.Get(m, path))
		if s == "" {
			continue
		}
		c := cloneValue(m).(map[string]any)
		docpath.Set(c, path, s)
		list[i] = c
	}
	return uniqBy(list, func(v any) any {
		return dedupKey(docpath.Get(v, path))
	})
}

// mapValues runs a map descriptor over doc. Each input key names an array of
// doc; every element becomes one object holding the truthy values of the
// paths listed for that key.
func mapValues(op *MapOp, doc Document) []any {
	out := []any{}
	for _, key := range op.Input {
		def, ok := op.In[key]
		if !ok {
			continue
		}
		list, ok := toSlice(doc[key])
		if !ok {
			continue
		}
		for _, item := range list {
			obj := make(map[string]any, len(def))
			for outKey, src := range def {
				if v := docpath.Get(item, src); truthy(v) {
					obj[outKey] = v
				}
			}
			out = append(out, obj)
		}
	}
	return out
}

// assign sets key to v, or removes it when v is nil.
func assign(m Document, key string, v any) {
	if v == nil {
		delete(m, key)
		return
	}
	m[key] = v
}

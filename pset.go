package pset

import (
	"fmt"
	"strings"
	"sync"
)

// Field is one named entry of a parameter set.
type Field struct {
	Name    string
	Value   Value
	Tracked bool // participates in ID
}

// String renders the field as `name = [untracked ]kind(value)`.
func (f Field) String() string {
	if f.Tracked {
		return f.Name + " = " + f.Value.String()
	}
	return f.Name + " = untracked " + f.Value.String()
}

// ParameterSet is an immutable ordered mapping of field names to typed values.
// Instances are created by Builder, Merge, or Decode.
type ParameterSet struct {
	fields   []Field
	index    map[string]int
	shadowed []string

	idOnce sync.Once
	id     string
}

func emptySet() *ParameterSet {
	return &ParameterSet{index: make(map[string]int)}
}

// Len returns the number of fields.
func (ps *ParameterSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.fields)
}

// Names returns the field names in declaration order.
func (ps *ParameterSet) Names() []string {
	names := make([]string, 0, ps.Len())
	if ps == nil {
		return names
	}
	for _, f := range ps.fields {
		names = append(names, f.Name)
	}
	return names
}

// Fields returns a copy of the fields in declaration order.
func (ps *ParameterSet) Fields() []Field {
	if ps == nil {
		return []Field{}
	}
	return cloneSlice(ps.fields)
}

// Field returns the named field.
func (ps *ParameterSet) Field(name string) (Field, bool) {
	if ps == nil {
		return Field{}, false
	}
	i, ok := ps.index[name]
	if !ok {
		return Field{}, false
	}
	return ps.fields[i], true
}

// Has reports whether the named field exists.
func (ps *ParameterSet) Has(name string) bool {
	_, ok := ps.Field(name)
	return ok
}

// Shadowed returns the names of imported fields that were replaced by an
// explicit declaration when the set was built.
func (ps *ParameterSet) Shadowed() []string {
	if ps == nil {
		return []string{}
	}
	return cloneSlice(ps.shadowed)
}

// Lookup resolves a dot-separated path through nested sets, e.g. "RelabelRules.Eta1".
func (ps *ParameterSet) Lookup(path string) (Field, bool) {
	segments := strings.Split(strings.TrimSuffix(path, "."), ".")
	current := ps
	for i, segment := range segments {
		f, ok := current.Field(segment)
		if !ok {
			return Field{}, false
		}
		if i == len(segments)-1 {
			return f, true
		}
		nested, ok := f.Value.data.(*ParameterSet)
		if !ok {
			return Field{}, false
		}
		current = nested
	}
	return Field{}, false
}

// IsTracked reports the tracking flag of the named field.
func (ps *ParameterSet) IsTracked(name string) (bool, error) {
	f, ok := ps.Field(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	return f.Tracked, nil
}

// typed fetches the named field and checks its kind.
func (ps *ParameterSet) typed(name string, want Kind) (any, error) {
	f, ok := ps.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	if f.Value.kind != want {
		return nil, fmt.Errorf("%w: field %s is %s, not %s", ErrTypeMismatch, name, f.Value.kind, want)
	}
	return f.Value.data, nil
}

func (ps *ParameterSet) Bool(name string) (bool, error) {
	v, err := ps.typed(name, KindBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (ps *ParameterSet) Int32(name string) (int32, error) {
	v, err := ps.typed(name, KindInt32)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (ps *ParameterSet) Uint32(name string) (uint32, error) {
	v, err := ps.typed(name, KindUint32)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func (ps *ParameterSet) Double(name string) (float64, error) {
	v, err := ps.typed(name, KindDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (ps *ParameterSet) String(name string) (string, error) {
	v, err := ps.typed(name, KindString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// VInt32 returns a copy of the named int32 sequence.
func (ps *ParameterSet) VInt32(name string) ([]int32, error) {
	v, err := ps.typed(name, KindVInt32)
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]int32)), nil
}

func (ps *ParameterSet) VUint32(name string) ([]uint32, error) {
	v, err := ps.typed(name, KindVUint32)
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]uint32)), nil
}

func (ps *ParameterSet) VDouble(name string) ([]float64, error) {
	v, err := ps.typed(name, KindVDouble)
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]float64)), nil
}

func (ps *ParameterSet) VString(name string) ([]string, error) {
	v, err := ps.typed(name, KindVString)
	if err != nil {
		return nil, err
	}
	return cloneSlice(v.([]string)), nil
}

// PSet returns the named nested set.
func (ps *ParameterSet) PSet(name string) (*ParameterSet, error) {
	v, err := ps.typed(name, KindPSet)
	if err != nil {
		return nil, err
	}
	return v.(*ParameterSet), nil
}

// Equal reports whether both sets hold the same fields, in the same order,
// with equal values and tracking flags.
func (ps *ParameterSet) Equal(o *ParameterSet) bool {
	if ps.Len() != o.Len() {
		return false
	}
	for i := 0; i < ps.Len(); i++ {
		a, b := ps.fields[i], o.fields[i]
		if a.Name != b.Name || a.Tracked != b.Tracked || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// Render renders the set on one line as `{name = kind(value); ...}`.
// Use Pretty for an indented multi-line rendering.
func (ps *ParameterSet) Render() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range ps.Fields() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Pretty renders the set over multiple lines in configuration-language form,
// indenting nested sets.
func (ps *ParameterSet) Pretty() string {
	var b strings.Builder
	ps.format(&b, "")
	return b.String()
}

func (ps *ParameterSet) format(b *strings.Builder, indent string) {
	b.WriteString("{\n")
	for _, f := range ps.Fields() {
		b.WriteString(indent + "  " + f.Name + " = ")
		if !f.Tracked {
			b.WriteString("untracked ")
		}
		if nested, ok := f.Value.data.(*ParameterSet); ok {
			b.WriteString("PSet ")
			nested.format(b, indent+"  ")
		} else {
			b.WriteString(f.Value.String())
		}
		b.WriteByte('\n')
	}
	b.WriteString(indent + "}")
}

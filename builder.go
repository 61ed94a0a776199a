package pset

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ValidatorFunc defines the signature for a function that can validate a built set.
// It receives the fully merged *ParameterSet and should return an error if validation fails.
type ValidatorFunc func(ps *ParameterSet) error

// ShadowPolicy decides what happens when an explicit declaration replaces an imported field.
type ShadowPolicy int

const (
	// ShadowAllow replaces the imported value silently (debug log only)
	ShadowAllow ShadowPolicy = iota
	// ShadowWarn replaces the imported value and logs a warning
	ShadowWarn
	// ShadowForbid fails the build with ErrShadowedField
	ShadowForbid
)

func (p ShadowPolicy) String() string {
	switch p {
	case ShadowAllow:
		return "allow"
	case ShadowWarn:
		return "warn"
	case ShadowForbid:
		return "forbid"
	}
	return fmt.Sprintf("ShadowPolicy(%d)", int(p))
}

// ParseShadowPolicy parses "allow", "warn" or "forbid".
func ParseShadowPolicy(s string) (ShadowPolicy, error) {
	switch s {
	case "allow", "":
		return ShadowAllow, nil
	case "warn":
		return ShadowWarn, nil
	case "forbid":
		return ShadowForbid, nil
	}
	return ShadowAllow, fmt.Errorf("unknown shadow policy %q", s)
}

// Builder provides a fluent interface for assembling a parameter set from
// imported base sets and explicit declarations.
type Builder struct {
	fields     []Field
	index      map[string]int
	declared   map[string]bool
	shadowed   []string
	policy     ShadowPolicy
	logger     *zap.Logger
	validators []ValidatorFunc
	errs       []error
}

// NewBuilder creates a new parameter set builder
func NewBuilder() *Builder {
	return &Builder{
		index:      make(map[string]int),
		declared:   make(map[string]bool),
		logger:     zap.NewNop(),
		validators: make([]ValidatorFunc, 0),
	}
}

// WithLogger sets the logger used to report shadowed fields
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithShadowPolicy sets how explicit declarations overriding imported fields are treated
func (b *Builder) WithShadowPolicy(p ShadowPolicy) *Builder {
	b.policy = p
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Import overlays all fields of base. Among imports the later one wins;
// an explicit declaration is never replaced by an import.
func (b *Builder) Import(base *ParameterSet) *Builder {
	for _, f := range base.Fields() {
		if b.declared[f.Name] {
			b.shadow(f.Name)
			continue
		}
		if i, exists := b.index[f.Name]; exists {
			b.fields[i] = f
			continue
		}
		b.append(f)
	}
	return b
}

// Set declares a field. Declaring the same name twice is an error reported by Build.
func (b *Builder) Set(f Field) *Builder {
	if !isValidName(f.Name) {
		b.errs = append(b.errs, fmt.Errorf("%w: field name %q", ErrInvalidName, f.Name))
		return b
	}
	if !f.Value.IsValid() {
		b.errs = append(b.errs, fmt.Errorf("%w: field %s has no value", ErrInvalidValue, f.Name))
		return b
	}
	if b.declared[f.Name] {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name))
		return b
	}
	b.declared[f.Name] = true

	if i, exists := b.index[f.Name]; exists {
		b.shadow(f.Name)
		b.fields[i] = f
		return b
	}
	b.append(f)
	return b
}

func (b *Builder) append(f Field) {
	b.index[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
}

// shadow records that an explicit declaration and an imported field share a name.
func (b *Builder) shadow(name string) {
	b.shadowed = append(b.shadowed, name)
	switch b.policy {
	case ShadowForbid:
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrShadowedField, name))
	case ShadowWarn:
		b.logger.Warn("Declaration overrides imported field", zap.String("field", name))
	default:
		b.logger.Debug("Declaration overrides imported field", zap.String("field", name))
	}
}

func (b *Builder) Bool(name string, v bool) *Builder {
	return b.Set(Field{Name: name, Value: BoolValue(v), Tracked: true})
}

func (b *Builder) UntrackedBool(name string, v bool) *Builder {
	return b.Set(Field{Name: name, Value: BoolValue(v)})
}

func (b *Builder) Int32(name string, v int32) *Builder {
	return b.Set(Field{Name: name, Value: Int32Value(v), Tracked: true})
}

func (b *Builder) UntrackedInt32(name string, v int32) *Builder {
	return b.Set(Field{Name: name, Value: Int32Value(v)})
}

func (b *Builder) Uint32(name string, v uint32) *Builder {
	return b.Set(Field{Name: name, Value: Uint32Value(v), Tracked: true})
}

func (b *Builder) UntrackedUint32(name string, v uint32) *Builder {
	return b.Set(Field{Name: name, Value: Uint32Value(v)})
}

func (b *Builder) Double(name string, v float64) *Builder {
	return b.Set(Field{Name: name, Value: DoubleValue(v), Tracked: true})
}

func (b *Builder) UntrackedDouble(name string, v float64) *Builder {
	return b.Set(Field{Name: name, Value: DoubleValue(v)})
}

func (b *Builder) String(name string, v string) *Builder {
	return b.Set(Field{Name: name, Value: StringValue(v), Tracked: true})
}

func (b *Builder) UntrackedString(name string, v string) *Builder {
	return b.Set(Field{Name: name, Value: StringValue(v)})
}

func (b *Builder) VInt32(name string, v ...int32) *Builder {
	return b.Set(Field{Name: name, Value: VInt32Value(v), Tracked: true})
}

func (b *Builder) UntrackedVInt32(name string, v ...int32) *Builder {
	return b.Set(Field{Name: name, Value: VInt32Value(v)})
}

func (b *Builder) VUint32(name string, v ...uint32) *Builder {
	return b.Set(Field{Name: name, Value: VUint32Value(v), Tracked: true})
}

func (b *Builder) UntrackedVUint32(name string, v ...uint32) *Builder {
	return b.Set(Field{Name: name, Value: VUint32Value(v)})
}

func (b *Builder) VDouble(name string, v ...float64) *Builder {
	return b.Set(Field{Name: name, Value: VDoubleValue(v), Tracked: true})
}

func (b *Builder) UntrackedVDouble(name string, v ...float64) *Builder {
	return b.Set(Field{Name: name, Value: VDoubleValue(v)})
}

func (b *Builder) VString(name string, v ...string) *Builder {
	return b.Set(Field{Name: name, Value: VStringValue(v), Tracked: true})
}

func (b *Builder) UntrackedVString(name string, v ...string) *Builder {
	return b.Set(Field{Name: name, Value: VStringValue(v)})
}

func (b *Builder) PSet(name string, ps *ParameterSet) *Builder {
	return b.Set(Field{Name: name, Value: PSetValue(ps), Tracked: true})
}

func (b *Builder) UntrackedPSet(name string, ps *ParameterSet) *Builder {
	return b.Set(Field{Name: name, Value: PSetValue(ps)})
}

// Build creates the ParameterSet from everything imported and declared so far
func (b *Builder) Build() (*ParameterSet, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	ps := &ParameterSet{
		fields:   cloneSlice(b.fields),
		index:    make(map[string]int, len(b.fields)),
		shadowed: cloneSlice(b.shadowed),
	}
	for i, f := range ps.fields {
		ps.index[f.Name] = i
	}

	for _, validator := range b.validators {
		if err := validator(ps); err != nil {
			return nil, fmt.Errorf("parameter set validation failed: %w", err)
		}
	}

	return ps, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *ParameterSet {
	ps, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("parameter set build failed: %v", err))
	}
	return ps
}

// Merge returns base overlaid by overlay: fields of overlay replace fields
// of base with the same name in place, new names are appended in order.
// Nested sets are replaced as a whole, not merged recursively.
func Merge(base, overlay *ParameterSet) *ParameterSet {
	return NewBuilder().Import(base).Import(overlay).MustBuild()
}

// isValidName checks that s is an identifier: a letter or underscore followed
// by letters, digits and underscores.
func isValidName(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isUnderscore := r == '_'

		if i == 0 && isDigit {
			return false
		}
		if !(isLetter || isDigit || isUnderscore) {
			return false
		}
	}
	return true
}

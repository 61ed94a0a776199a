package pset

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// TagName is the struct tag read by Decode and DecodeStrict.
const TagName = "pset"

// ToMap converts the set into nested maps: vectors become typed slices
// (copies), nested sets become map[string]any.
func (ps *ParameterSet) ToMap() map[string]any {
	out := make(map[string]any, ps.Len())
	for _, f := range ps.Fields() {
		if nested, isSet := f.Value.data.(*ParameterSet); isSet {
			out[f.Name] = nested.ToMap()
			continue
		}
		out[f.Name] = f.Value.Interface()
	}
	return out
}

// Decode populates target (a non-nil pointer to a struct or map) from the set
// using the `pset` struct tag. Conversions between compatible types are allowed
// and missing fields leave the target untouched.
func (ps *ParameterSet) Decode(target any) error {
	return ps.decode(target, true, nil)
}

// DecodeStrict is the reading contract of a consuming module: every target
// field must be present in the set unless listed in optional (by dot path),
// and kinds must convert without weak typing.
func (ps *ParameterSet) DecodeStrict(target any, optional ...string) error {
	md := &mapstructure.Metadata{}
	if err := ps.decode(target, false, md); err != nil {
		return err
	}

	var missing []string
	for _, name := range md.Unset {
		if !isOptional(name, optional) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

func (ps *ParameterSet) decode(target any, weak bool, md *mapstructure.Metadata) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("decode target must be non-nil pointer, got %T", target)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          TagName,
		WeaklyTypedInput: weak,
		DecodeHook:       getDecodeHook(!weak),
		Metadata:         md,
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(ps.ToMap()); err != nil {
		return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return nil
}

// getDecodeHook returns the composite decode hook used by Decode. Strict
// decoding also rejects lossy numeric conversions.
func getDecodeHook(strict bool) mapstructure.DecodeHookFunc {
	hooks := []mapstructure.DecodeHookFunc{
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	}
	if strict {
		hooks = append([]mapstructure.DecodeHookFunc{integerHook(false)}, hooks...)
	}
	return mapstructure.ComposeDecodeHookFunc(hooks...)
}

// integerHook checks every value decoded into an integer target, vector
// elements included: integers must fit the target type, and floating point
// sources are refused unless wholeFloats allows whole numbers through.
func integerHook(wholeFloats bool) mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if !isInteger(to.Kind()) {
			return data, nil
		}

		v := reflect.ValueOf(data)
		switch from.Kind() {
		case reflect.Float32, reflect.Float64:
			f := v.Float()
			if !wholeFloats {
				return nil, fmt.Errorf("cannot decode %s value %v into %s", from, data, to)
			}
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%v is not a whole number", data)
			}
			if f >= math.MinInt64 && f < math.MaxInt64 && fitsSigned(int64(f), to) {
				return data, nil
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if fitsSigned(v.Int(), to) {
				return data, nil
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := v.Uint()
			target := reflect.Zero(to)
			if isUnsigned(to.Kind()) {
				if !target.OverflowUint(u) {
					return data, nil
				}
			} else if u <= math.MaxInt64 && !target.OverflowInt(int64(u)) {
				return data, nil
			}
		default:
			return data, nil
		}
		return nil, fmt.Errorf("value %v overflows %s", data, to)
	}
}

// fitsSigned reports whether n is representable by the integer type to.
func fitsSigned(n int64, to reflect.Type) bool {
	target := reflect.Zero(to)
	if isUnsigned(to.Kind()) {
		return n >= 0 && !target.OverflowUint(uint64(n))
	}
	return !target.OverflowInt(n)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return isUnsigned(k)
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isOptional(name string, optional []string) bool {
	for _, opt := range optional {
		if name == opt || strings.HasPrefix(name, opt+".") {
			return true
		}
	}
	return false
}

// coerce converts a loosely typed decoded document value (e.g. []any of int64
// from TOML, float64 from JSON) into the payload for kind. Integer kinds
// accept only whole numbers within range.
func coerce(kind Kind, raw any) (Value, error) {
	if raw == nil && !kind.IsVector() {
		return Value{}, fmt.Errorf("%w: missing %s value", ErrInvalidValue, kind)
	}

	var err error
	switch kind {
	case KindBool:
		var v bool
		if err = decodeRaw(raw, &v); err == nil {
			return BoolValue(v), nil
		}
	case KindInt32:
		var v int32
		if err = decodeRaw(raw, &v); err == nil {
			return Int32Value(v), nil
		}
	case KindUint32:
		var v uint32
		if err = decodeRaw(raw, &v); err == nil {
			return Uint32Value(v), nil
		}
	case KindDouble:
		var v float64
		if err = decodeRaw(raw, &v); err == nil {
			return DoubleValue(v), nil
		}
	case KindString:
		var v string
		if err = decodeRaw(raw, &v); err == nil {
			return StringValue(v), nil
		}
	case KindVInt32:
		var v []int32
		if err = decodeRaw(raw, &v); err == nil {
			return VInt32Value(v), nil
		}
	case KindVUint32:
		var v []uint32
		if err = decodeRaw(raw, &v); err == nil {
			return VUint32Value(v), nil
		}
	case KindVDouble:
		var v []float64
		if err = decodeRaw(raw, &v); err == nil {
			return VDoubleValue(v), nil
		}
	case KindVString:
		var v []string
		if err = decodeRaw(raw, &v); err == nil {
			return VStringValue(v), nil
		}
	default:
		return Value{}, fmt.Errorf("%w: cannot coerce to %s", ErrInvalidValue, kind)
	}
	return Value{}, fmt.Errorf("%w: %s from %T: %w", ErrInvalidValue, kind, raw, err)
}

func decodeRaw(raw any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: integerHook(true),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

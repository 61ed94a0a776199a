package pset

import (
	"fmt"
	"math"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

// Block types of the configuration language.
const (
	blockPSet          = "pset"
	blockUntrackedPSet = "untracked_pset"
	blockProducer      = "producer"
	blockInclude       = "include"
	funcUntracked      = "untracked"
)

// LoadOption configures LoadHCL.
type LoadOption func(*hclLoader)

// WithLoadShadowPolicy applies p to every body built by the loader.
func WithLoadShadowPolicy(p ShadowPolicy) LoadOption {
	return func(l *hclLoader) {
		l.policy = p
	}
}

type hclLoader struct {
	src    []byte
	reg    *Registry
	policy ShadowPolicy
	logger *zap.Logger
}

// LoadHCLFile reads path and loads it with LoadHCL.
func LoadHCLFile(path string, reg *Registry, opts ...LoadOption) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}
	return LoadHCL(src, path, reg, opts...)
}

// LoadHCL parses a configuration file and registers its top-level blocks
// into reg in source order:
//
//	pset "hcalSimBlock" {
//	  include "hcalSimParameters" {}
//	  doNoise     = true
//	  RelabelHits = untracked(false)
//	  untracked_pset "RelabelRules" {
//	    Eta1 = untracked(vint32(1, 2, 2))
//	  }
//	}
//
//	producer "simHcalUnsuppressedDigis" "HcalDigiProducer" {
//	  include "hcalSimBlock" {}
//	}
//
// Includes refer to sets registered earlier, in this file or before it, and
// are applied before the body's own declarations. Registration stops at the
// first failing block; blocks before it stay registered.
func LoadHCL(src []byte, filename string, reg *Registry, opts ...LoadOption) error {
	if reg == nil {
		return fmt.Errorf("%w: nil registry", ErrInvalidValue)
	}
	l := &hclLoader{src: src, reg: reg, logger: reg.Logger()}
	for _, opt := range opts {
		opt(l)
	}

	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return fmt.Errorf("%w: %w", ErrSyntax, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("%w: %s is not native syntax", ErrSyntax, filename)
	}

	if len(body.Attributes) > 0 {
		return fmt.Errorf("%w: unexpected top-level attributes %s, declare fields inside a pset or producer block",
			ErrSyntax, strings.Join(sortedKeys(body.Attributes), ", "))
	}

	var psets, producers int
	for _, block := range body.Blocks {
		switch block.Type {
		case blockPSet:
			if err := checkLabels(block, "name"); err != nil {
				return err
			}
			name := block.Labels[0]
			ps, err := l.buildBody(block.Body, name)
			if err != nil {
				return err
			}
			if err := reg.RegisterPSet(name, ps); err != nil {
				return fmt.Errorf("%s: %w", block.TypeRange, err)
			}
			psets++

		case blockProducer:
			if err := checkLabels(block, "label", "type"); err != nil {
				return err
			}
			label, typeName := block.Labels[0], block.Labels[1]
			ps, err := l.buildBody(block.Body, label)
			if err != nil {
				return err
			}
			p, err := NewProducer(label, typeName, ps)
			if err != nil {
				return fmt.Errorf("%s: %w", block.TypeRange, err)
			}
			if err := reg.RegisterProducer(p); err != nil {
				return fmt.Errorf("%s: %w", block.TypeRange, err)
			}
			producers++

		default:
			return fmt.Errorf("%w: %s: unexpected top-level block %q", ErrSyntax, block.TypeRange, block.Type)
		}
	}

	l.logger.Debug("Loaded configuration",
		zap.String("file", filename),
		zap.Int("psets", psets),
		zap.Int("producers", producers))
	return nil
}

func checkLabels(block *hclsyntax.Block, names ...string) error {
	if len(block.Labels) != len(names) {
		return fmt.Errorf("%w: %s: %s block needs labels %s", ErrSyntax, block.TypeRange, block.Type, strings.Join(names, ", "))
	}
	return nil
}

// bodyItem is a declaration in a body, ordered by source position.
type bodyItem struct {
	offset int
	attr   *hclsyntax.Attribute
	block  *hclsyntax.Block
}

// buildBody turns one block body into a set. path names the body in errors and logs.
func (l *hclLoader) buildBody(body *hclsyntax.Body, path string) (*ParameterSet, error) {
	b := NewBuilder().
		WithLogger(l.logger.With(zap.String("pset", path))).
		WithShadowPolicy(l.policy)

	var items []bodyItem
	for _, block := range body.Blocks {
		switch block.Type {
		case blockInclude:
			if err := checkLabels(block, "name"); err != nil {
				return nil, err
			}
			base, err := l.reg.PSet(block.Labels[0])
			if err != nil {
				return nil, fmt.Errorf("%s: include in %s: %w", block.TypeRange, path, err)
			}
			b.Import(base)
		case blockPSet, blockUntrackedPSet:
			if err := checkLabels(block, "name"); err != nil {
				return nil, err
			}
			items = append(items, bodyItem{offset: block.TypeRange.Start.Byte, block: block})
		default:
			return nil, fmt.Errorf("%w: %s: unexpected block %q in %s", ErrSyntax, block.TypeRange, block.Type, path)
		}
	}
	for _, attr := range body.Attributes {
		items = append(items, bodyItem{offset: attr.SrcRange.Start.Byte, attr: attr})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	for _, item := range items {
		if item.attr != nil {
			v, tracked, err := l.fieldValue(item.attr.Expr)
			if err != nil {
				return nil, fmt.Errorf("%s: %s.%s: %w", item.attr.SrcRange, path, item.attr.Name, err)
			}
			b.Set(Field{Name: item.attr.Name, Value: v, Tracked: tracked})
			continue
		}

		name := item.block.Labels[0]
		nested, err := l.buildBody(item.block.Body, path+"."+name)
		if err != nil {
			return nil, err
		}
		b.Set(Field{Name: name, Value: PSetValue(nested), Tracked: item.block.Type == blockPSet})
	}

	ps, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// fieldValue evaluates an attribute expression, unwrapping untracked().
func (l *hclLoader) fieldValue(expr hclsyntax.Expression) (Value, bool, error) {
	call, ok := expr.(*hclsyntax.FunctionCallExpr)
	if !ok || call.Name != funcUntracked {
		v, err := l.typedValue(expr)
		return v, true, err
	}

	if len(call.Args) != 1 {
		return Value{}, false, fmt.Errorf("%w: untracked() takes exactly one argument", ErrInvalidValue)
	}
	if inner, nested := call.Args[0].(*hclsyntax.FunctionCallExpr); nested && inner.Name == funcUntracked {
		return Value{}, false, fmt.Errorf("%w: untracked() cannot be nested", ErrInvalidValue)
	}
	v, err := l.typedValue(call.Args[0])
	return v, false, err
}

func (l *hclLoader) typedValue(expr hclsyntax.Expression) (Value, error) {
	call, ok := expr.(*hclsyntax.FunctionCallExpr)
	if !ok {
		return l.infer(expr)
	}

	kind, err := ParseKind(call.Name)
	if err != nil || kind == KindPSet {
		return Value{}, fmt.Errorf("%w: unknown function %s()", ErrInvalidValue, call.Name)
	}

	if !kind.IsVector() {
		if len(call.Args) != 1 {
			return Value{}, fmt.Errorf("%w: %s() takes exactly one argument", ErrInvalidValue, call.Name)
		}
		v, err := eval(call.Args[0])
		if err != nil {
			return Value{}, err
		}
		return scalarValue(kind, v)
	}

	// vint32(1, 2, 3) and vint32([1, 2, 3]) are equivalent; vint32() is empty.
	elems := call.Args
	if len(elems) == 1 {
		if tuple, isTuple := elems[0].(*hclsyntax.TupleConsExpr); isTuple {
			elems = tuple.Exprs
		}
	}
	vals := make([]cty.Value, 0, len(elems))
	for _, e := range elems {
		v, err := eval(e)
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, v)
	}
	return vectorValue(kind, vals)
}

// infer picks a kind for a plain literal. Whole numbers written without a
// decimal point or exponent that fit int32 are int32, other numbers double.
func (l *hclLoader) infer(expr hclsyntax.Expression) (Value, error) {
	if tuple, ok := expr.(*hclsyntax.TupleConsExpr); ok {
		if len(tuple.Exprs) == 0 {
			return Value{}, fmt.Errorf("%w: empty list has no element kind, use vint32(), vuint32(), vdouble() or vstring()", ErrInvalidValue)
		}

		vals := make([]cty.Value, 0, len(tuple.Exprs))
		kind := KindVInt32
		for i, e := range tuple.Exprs {
			v, err := eval(e)
			if err != nil {
				return Value{}, err
			}
			switch {
			case v.Type() == cty.String && (i == 0 || kind == KindVString):
				kind = KindVString
			case v.Type() == cty.Number && kind != KindVString:
				if l.spelledFloat(e) || !fitsInt32(v) {
					kind = KindVDouble
				}
			default:
				return Value{}, fmt.Errorf("%w: list elements must all be numbers or all be strings", ErrInvalidValue)
			}
			vals = append(vals, v)
		}
		return vectorValue(kind, vals)
	}

	v, err := eval(expr)
	if err != nil {
		return Value{}, err
	}
	switch v.Type() {
	case cty.Bool:
		return scalarValue(KindBool, v)
	case cty.String:
		return scalarValue(KindString, v)
	case cty.Number:
		if l.spelledFloat(expr) || !fitsInt32(v) {
			return scalarValue(KindDouble, v)
		}
		return scalarValue(KindInt32, v)
	}
	return Value{}, fmt.Errorf("%w: cannot infer a kind for %s, use a typed constructor", ErrInvalidValue, v.Type().FriendlyName())
}

// spelledFloat reports whether the source text of expr looks like a floating point literal.
func (l *hclLoader) spelledFloat(expr hclsyntax.Expression) bool {
	rng := expr.Range()
	if rng.Start.Byte < 0 || rng.End.Byte > len(l.src) || rng.Start.Byte > rng.End.Byte {
		return false
	}
	return strings.ContainsAny(string(l.src[rng.Start.Byte:rng.End.Byte]), ".eE")
}

// eval evaluates a literal expression. No variables or functions are in scope.
func eval(expr hclsyntax.Expression) (cty.Value, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("%w: %w", ErrSyntax, diags)
	}
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("%w: value must be a literal", ErrInvalidValue)
	}
	return v, nil
}

func scalarValue(kind Kind, v cty.Value) (Value, error) {
	switch kind {
	case KindBool:
		b, err := toBool(v)
		return BoolValue(b), err
	case KindInt32:
		i, err := toInt32(v)
		return Int32Value(i), err
	case KindUint32:
		u, err := toUint32(v)
		return Uint32Value(u), err
	case KindDouble:
		f, err := toDouble(v)
		return DoubleValue(f), err
	case KindString:
		s, err := toString(v)
		return StringValue(s), err
	}
	return Value{}, fmt.Errorf("%w: %s is not a scalar kind", ErrInvalidValue, kind)
}

func vectorValue(kind Kind, vals []cty.Value) (Value, error) {
	switch kind {
	case KindVInt32:
		out, err := convertAll(vals, toInt32)
		return VInt32Value(out), err
	case KindVUint32:
		out, err := convertAll(vals, toUint32)
		return VUint32Value(out), err
	case KindVDouble:
		out, err := convertAll(vals, toDouble)
		return VDoubleValue(out), err
	case KindVString:
		out, err := convertAll(vals, toString)
		return VStringValue(out), err
	}
	return Value{}, fmt.Errorf("%w: %s is not a vector kind", ErrInvalidValue, kind)
}

func convertAll[T any](vals []cty.Value, conv func(cty.Value) (T, error)) ([]T, error) {
	out := make([]T, 0, len(vals))
	for i, v := range vals {
		e, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func toBool(v cty.Value) (bool, error) {
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("%w: expected bool, got %s", ErrInvalidValue, v.Type().FriendlyName())
	}
	return v.True(), nil
}

func toString(v cty.Value) (string, error) {
	if v.Type() != cty.String {
		return "", fmt.Errorf("%w: expected string, got %s", ErrInvalidValue, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

func toDouble(v cty.Value) (float64, error) {
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("%w: expected number, got %s", ErrInvalidValue, v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

func toInt32(v cty.Value) (int32, error) {
	i, err := toInteger(v, math.MinInt32, math.MaxInt32)
	return int32(i), err
}

func toUint32(v cty.Value) (uint32, error) {
	i, err := toInteger(v, 0, math.MaxUint32)
	return uint32(i), err
}

func toInteger(v cty.Value, lo, hi int64) (int64, error) {
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("%w: expected number, got %s", ErrInvalidValue, v.Type().FriendlyName())
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidValue, bf.Text('g', -1))
	}
	i, acc := bf.Int64()
	if acc != big.Exact || i < lo || i > hi {
		return 0, fmt.Errorf("%w: %s out of range [%d, %d]", ErrInvalidValue, bf.Text('g', -1), lo, hi)
	}
	return i, nil
}

func fitsInt32(v cty.Value) bool {
	_, err := toInt32(v)
	return err == nil
}

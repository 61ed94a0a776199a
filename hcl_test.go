package pset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loadString(t *testing.T, src string, opts ...LoadOption) (*Registry, error) {
	t.Helper()
	reg := NewRegistry()
	return reg, LoadHCL([]byte(src), "test.hcl", reg, opts...)
}

func mustLoad(t *testing.T, src string, opts ...LoadOption) *Registry {
	t.Helper()
	reg, err := loadString(t, src, opts...)
	require.NoError(t, err)
	return reg
}

func TestLoadHCL(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		reg := mustLoad(t, `
pset "hb" {
  readoutFrameSize = 10
  samplingFactor   = 125.44
  syncPhase        = true
  name             = "barrel"
  samplingFactors  = [125.44, 125.54]
  rings            = [1, 2, 3]
  labels           = ["a", "b"]
}
`)
		ps, err := reg.PSet("hb")
		require.NoError(t, err)
		assert.Equal(t, []string{"readoutFrameSize", "samplingFactor", "syncPhase", "name", "samplingFactors", "rings", "labels"}, ps.Names())

		want := NewBuilder().
			Int32("readoutFrameSize", 10).
			Double("samplingFactor", 125.44).
			Bool("syncPhase", true).
			String("name", "barrel").
			VDouble("samplingFactors", 125.44, 125.54).
			VInt32("rings", 1, 2, 3).
			VString("labels", "a", "b").
			MustBuild()
		assert.True(t, want.Equal(ps), ps.Pretty())
	})

	t.Run("NumberInference", func(t *testing.T) {
		reg := mustLoad(t, `
pset "n" {
  whole     = 6
  dotted    = 6.0
  exponent  = 1e3
  negative  = -4
  large     = 3000000000
  mixed     = [1, 2.5]
  wideList  = [1, 3000000000]
}
`)
		ps, _ := reg.PSet("n")
		kinds := map[string]Kind{
			"whole":    KindInt32,
			"dotted":   KindDouble,
			"exponent": KindDouble,
			"negative": KindInt32,
			"large":    KindDouble,
			"mixed":    KindVDouble,
			"wideList": KindVDouble,
		}
		for name, want := range kinds {
			f, ok := ps.Field(name)
			require.True(t, ok, name)
			assert.Equal(t, want, f.Value.Kind(), name)
		}
		n, _ := ps.Int32("negative")
		assert.Equal(t, int32(-4), n)
	})

	t.Run("TypedConstructors", func(t *testing.T) {
		reg := mustLoad(t, `
pset "typed" {
  u       = uint32(7)
  i       = int32(-3)
  d       = double(6)
  s       = string("x")
  b       = bool(false)
  vi      = vint32(1, 2)
  viList  = vint32([1, 2])
  vu      = vuint32(4294967295)
  vd      = vdouble(1, 2)
  vs      = vstring()
}
`)
		ps, _ := reg.PSet("typed")
		want := NewBuilder().
			Uint32("u", 7).
			Int32("i", -3).
			Double("d", 6).
			String("s", "x").
			Bool("b", false).
			VInt32("vi", 1, 2).
			VInt32("viList", 1, 2).
			VUint32("vu", 4294967295).
			VDouble("vd", 1, 2).
			VString("vs").
			MustBuild()
		assert.True(t, want.Equal(ps), ps.Pretty())
	})

	t.Run("Untracked", func(t *testing.T) {
		reg := mustLoad(t, `
pset "block" {
  doNoise     = true
  RelabelHits = untracked(false)
  untracked_pset "RelabelRules" {
    Eta1 = untracked(vint32(1, 2, 2))
  }
  pset "hb" {
    firstRing = 1
  }
}
`)
		ps, _ := reg.PSet("block")
		for name, want := range map[string]bool{"doNoise": true, "RelabelHits": false, "RelabelRules": false, "hb": true} {
			tracked, err := ps.IsTracked(name)
			require.NoError(t, err, name)
			assert.Equal(t, want, tracked, name)
		}
		f, ok := ps.Lookup("RelabelRules.Eta1")
		require.True(t, ok)
		assert.False(t, f.Tracked)
		assert.True(t, f.Value.Equal(VInt32Value([]int32{1, 2, 2})))
	})

	t.Run("IncludeOverrideWins", func(t *testing.T) {
		reg := mustLoad(t, `
pset "base" {
  doNoise = false
  frame   = 10
}

pset "block" {
  doNoise = true
  include "base" {}
  extra = "x"
}
`)
		ps, _ := reg.PSet("block")
		assert.Equal(t, []string{"doNoise", "frame", "extra"}, ps.Names())
		doNoise, _ := ps.Bool("doNoise")
		assert.True(t, doNoise)
		assert.Equal(t, []string{"doNoise"}, ps.Shadowed())
	})

	t.Run("Producer", func(t *testing.T) {
		reg := mustLoad(t, `
pset "block" {
  doNoise = true
}

producer "digis" "HcalDigiProducer" {
  include "block" {}
  hitsProducer = "g4SimHits"
}
`)
		p, err := reg.Producer("digis")
		require.NoError(t, err)
		assert.Equal(t, "HcalDigiProducer", p.Type())
		assert.Equal(t, []string{"doNoise", "hitsProducer"}, p.Params().Names())
	})

	t.Run("DebugLog", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		reg := NewRegistry().WithLogger(zap.New(core))
		require.NoError(t, LoadHCL([]byte(`pset "a" {}`), "a.hcl", reg))
		assert.Equal(t, 1, logs.FilterMessage("Loaded configuration").Len())
	})
}

func TestLoadHCLErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"SyntaxError", `pset "a" {`, ErrSyntax},
		{"DuplicateAttribute", "pset \"a\" {\n  x = 1\n  x = 2\n}\n", ErrSyntax},
		{"AttributeAndBlock", "pset \"a\" {\n  x = 1\n  pset \"x\" {}\n}\n", ErrDuplicateField},
		{"TopLevelAttribute", "x = 1\n", ErrSyntax},
		{"UnknownTopLevelBlock", `module "a" {}`, ErrSyntax},
		{"UnknownNestedBlock", "pset \"a\" {\n  module \"b\" {}\n}\n", ErrSyntax},
		{"MissingLabel", `pset {}`, ErrSyntax},
		{"ProducerNeedsType", `producer "a" {}`, ErrSyntax},
		{"EmptyList", "pset \"a\" {\n  v = []\n}\n", ErrInvalidValue},
		{"MixedList", "pset \"a\" {\n  v = [1, \"a\"]\n}\n", ErrInvalidValue},
		{"Int32OutOfRange", "pset \"a\" {\n  v = int32(3000000000)\n}\n", ErrInvalidValue},
		{"NegativeUint32", "pset \"a\" {\n  v = uint32(-1)\n}\n", ErrInvalidValue},
		{"FractionalInt", "pset \"a\" {\n  v = vint32(1, 2.5)\n}\n", ErrInvalidValue},
		{"UnknownFunction", "pset \"a\" {\n  v = int64(1)\n}\n", ErrInvalidValue},
		{"WrongArgCount", "pset \"a\" {\n  v = bool(true, false)\n}\n", ErrInvalidValue},
		{"NestedUntracked", "pset \"a\" {\n  v = untracked(untracked(1))\n}\n", ErrInvalidValue},
		{"Null", "pset \"a\" {\n  v = null\n}\n", ErrInvalidValue},
		{"Variable", "pset \"a\" {\n  v = other\n}\n", ErrSyntax},
		{"UnknownInclude", "pset \"a\" {\n  include \"missing\" {}\n}\n", ErrNotRegistered},
		{"DuplicateSetName", "pset \"a\" {}\npset \"a\" {}\n", ErrAlreadyRegistered},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadString(t, tc.src)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("ForbidShadowing", func(t *testing.T) {
		src := `
pset "base" {
  doNoise = false
}
pset "block" {
  include "base" {}
  doNoise = true
}
`
		_, err := loadString(t, src, WithLoadShadowPolicy(ShadowForbid))
		assert.ErrorIs(t, err, ErrShadowedField)

		_, err = loadString(t, src)
		assert.NoError(t, err)
	})

	t.Run("EarlierBlocksStayRegistered", func(t *testing.T) {
		reg, err := loadString(t, "pset \"a\" {}\npset \"b\" {\n  v = []\n}\n")
		require.Error(t, err)
		_, err = reg.PSet("a")
		assert.NoError(t, err)
		_, err = reg.PSet("b")
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("NilRegistry", func(t *testing.T) {
		var err error
		require.NotPanics(t, func() { err = LoadHCL([]byte(`pset "a" {}`), "nil.hcl", nil) })
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestLoadHCLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digis.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`pset "a" { x = 1 }`), 0644))

	reg := NewRegistry()
	require.NoError(t, LoadHCLFile(path, reg))
	ps, err := reg.PSet("a")
	require.NoError(t, err)
	x, _ := ps.Int32("x")
	assert.Equal(t, int32(1), x)

	err = LoadHCLFile(filepath.Join(t.TempDir(), "missing.hcl"), NewRegistry())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

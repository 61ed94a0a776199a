package pset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relabelSet(t *testing.T) *ParameterSet {
	t.Helper()
	rules := NewBuilder().
		UntrackedVInt32("Eta1", 1, 2, 2).
		UntrackedVInt32("Eta17", 1, 1).
		MustBuild()
	ps, err := NewBuilder().
		Bool("doNoise", true).
		Double("timePhase", 5).
		String("hitsProducer", "g4SimHits").
		UntrackedBool("RelabelHits", false).
		UntrackedPSet("RelabelRules", rules).
		Build()
	require.NoError(t, err)
	return ps
}

func TestGetters(t *testing.T) {
	ps := relabelSet(t)

	t.Run("NotFound", func(t *testing.T) {
		_, err := ps.Bool("missing")
		assert.ErrorIs(t, err, ErrFieldNotFound)
		_, err = ps.IsTracked("missing")
		assert.ErrorIs(t, err, ErrFieldNotFound)
		assert.False(t, ps.Has("missing"))
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		_, err := ps.String("doNoise")
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = ps.VInt32("RelabelRules")
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = ps.Int32("timePhase")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("Field", func(t *testing.T) {
		f, ok := ps.Field("RelabelHits")
		require.True(t, ok)
		assert.Equal(t, KindBool, f.Value.Kind())
		assert.False(t, f.Tracked)
		assert.Equal(t, "RelabelHits = untracked bool(false)", f.String())
	})

	t.Run("FieldsIsACopy", func(t *testing.T) {
		fields := ps.Fields()
		fields[0].Name = "changed"
		assert.Equal(t, "doNoise", ps.Names()[0])
	})

	t.Run("NilSet", func(t *testing.T) {
		var empty *ParameterSet
		assert.Equal(t, 0, empty.Len())
		assert.Empty(t, empty.Names())
		assert.Empty(t, empty.Fields())
		_, err := empty.Bool("x")
		assert.ErrorIs(t, err, ErrFieldNotFound)
	})
}

func TestLookup(t *testing.T) {
	ps := relabelSet(t)

	f, ok := ps.Lookup("RelabelRules.Eta17")
	require.True(t, ok)
	assert.Equal(t, VInt32Value([]int32{1, 1}), f.Value)
	assert.False(t, f.Tracked)

	f, ok = ps.Lookup("doNoise")
	require.True(t, ok)
	assert.True(t, f.Tracked)

	_, ok = ps.Lookup("RelabelRules.Eta5")
	assert.False(t, ok)
	_, ok = ps.Lookup("doNoise.child")
	assert.False(t, ok)
	_, ok = ps.Lookup("")
	assert.False(t, ok)
}

func TestPaths(t *testing.T) {
	ps := relabelSet(t)
	assert.Equal(t, []string{
		"doNoise",
		"timePhase",
		"hitsProducer",
		"RelabelHits",
		"RelabelRules.Eta1",
		"RelabelRules.Eta17",
	}, ps.Paths())
}

func TestEqual(t *testing.T) {
	a := relabelSet(t)
	b := relabelSet(t)
	assert.True(t, a.Equal(b))

	reordered := NewBuilder().Double("timePhase", 5).Bool("doNoise", true).MustBuild()
	inOrder := NewBuilder().Bool("doNoise", true).Double("timePhase", 5).MustBuild()
	assert.False(t, reordered.Equal(inOrder), "order is significant")

	untracked := NewBuilder().UntrackedBool("doNoise", true).Double("timePhase", 5).MustBuild()
	assert.False(t, inOrder.Equal(untracked), "tracking is significant")

	int32Kind := NewBuilder().Int32("n", 1).MustBuild()
	uint32Kind := NewBuilder().Uint32("n", 1).MustBuild()
	assert.False(t, int32Kind.Equal(uint32Kind), "kind is significant")
}

func TestRendering(t *testing.T) {
	ps := relabelSet(t)

	assert.Equal(t,
		`{doNoise = bool(true); timePhase = double(5.0); hitsProducer = string("g4SimHits"); `+
			`RelabelHits = untracked bool(false); `+
			`RelabelRules = untracked PSet({Eta1 = untracked vint32(1, 2, 2); Eta17 = untracked vint32(1, 1)})}`,
		ps.Render())

	want := `{
  doNoise = bool(true)
  timePhase = double(5.0)
  hitsProducer = string("g4SimHits")
  RelabelHits = untracked bool(false)
  RelabelRules = untracked PSet {
    Eta1 = untracked vint32(1, 2, 2)
    Eta17 = untracked vint32(1, 1)
  }
}`
	assert.Equal(t, want, ps.Pretty())
}

func TestKind(t *testing.T) {
	for k := KindBool; k <= KindPSet; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("int64")
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.True(t, KindVString.IsVector())
	assert.False(t, KindPSet.IsVector())
	assert.Equal(t, "invalid", KindInvalid.String())
}

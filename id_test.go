package pset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := relabelSet(t)
		b := relabelSet(t)
		assert.Equal(t, a.ID(), b.ID())
		assert.Len(t, a.ID(), 64)
		assert.Equal(t, a.Canonical(), b.Canonical())
	})

	t.Run("UntrackedFieldsIgnored", func(t *testing.T) {
		a := relabelSet(t)
		changed := NewBuilder().
			Import(a).
			UntrackedBool("RelabelHits", true).
			UntrackedPSet("RelabelRules", NewBuilder().UntrackedVInt32("Eta1", 9).MustBuild()).
			UntrackedString("note", "added").
			MustBuild()
		assert.Equal(t, a.ID(), changed.ID())
	})

	t.Run("TrackedFieldsCount", func(t *testing.T) {
		a := relabelSet(t)
		changed := NewBuilder().Import(a).Bool("doNoise", false).MustBuild()
		assert.NotEqual(t, a.ID(), changed.ID())

		added := NewBuilder().Import(a).Bool("doEmpty", true).MustBuild()
		assert.NotEqual(t, a.ID(), added.ID())
	})

	t.Run("TrackingFlagChangesID", func(t *testing.T) {
		tracked := NewBuilder().Bool("x", true).MustBuild()
		untracked := NewBuilder().UntrackedBool("x", true).MustBuild()
		assert.NotEqual(t, tracked.ID(), untracked.ID())
		assert.Equal(t, NewBuilder().MustBuild().ID(), untracked.ID())
	})

	t.Run("DeclarationOrderIgnored", func(t *testing.T) {
		a := NewBuilder().Bool("a", true).Int32("b", 2).MustBuild()
		b := NewBuilder().Int32("b", 2).Bool("a", true).MustBuild()
		assert.Equal(t, a.ID(), b.ID())
	})

	t.Run("VectorOrderCounts", func(t *testing.T) {
		a := NewBuilder().VInt32("v", 1, 2).MustBuild()
		b := NewBuilder().VInt32("v", 2, 1).MustBuild()
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("KindCounts", func(t *testing.T) {
		a := NewBuilder().Int32("n", 1).MustBuild()
		b := NewBuilder().Uint32("n", 1).MustBuild()
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("NoConcatenationAmbiguity", func(t *testing.T) {
		a := NewBuilder().VString("v", "ab", "c").MustBuild()
		b := NewBuilder().VString("v", "a", "bc").MustBuild()
		assert.NotEqual(t, a.ID(), b.ID())

		c := NewBuilder().String("ab", "c").MustBuild()
		d := NewBuilder().String("a", "bc").MustBuild()
		assert.NotEqual(t, c.ID(), d.ID())
	})

	t.Run("NestedTrackedCounts", func(t *testing.T) {
		inner := func(v int32) *ParameterSet { return NewBuilder().Int32("depth", v).MustBuild() }
		a := NewBuilder().PSet("hb", inner(1)).MustBuild()
		b := NewBuilder().PSet("hb", inner(2)).MustBuild()
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("NilAndEmpty", func(t *testing.T) {
		var nilSet *ParameterSet
		assert.Equal(t, NewBuilder().MustBuild().ID(), nilSet.ID())
	})

	t.Run("ConcurrentCalls", func(t *testing.T) {
		ps := relabelSet(t)
		want := relabelSet(t).ID()

		var wg sync.WaitGroup
		ids := make([]string, 16)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = ps.ID()
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			require.Equal(t, want, id)
		}
	})
}

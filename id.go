package pset

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
)

// ID returns the provenance identity of the set: the hex sha256 of Canonical.
// Only tracked fields contribute, so changing an untracked field never changes the ID.
func (ps *ParameterSet) ID() string {
	if ps == nil {
		return emptySet().ID()
	}
	ps.idOnce.Do(func() {
		sum := sha256.Sum256(ps.Canonical())
		ps.id = hex.EncodeToString(sum[:])
	})
	return ps.id
}

// Canonical returns the deterministic encoding hashed by ID.
//
// Determinism rules:
//   - Untracked fields are skipped, including whole untracked nested sets.
//   - Fields are sorted by name; declaration order does not affect identity.
//   - Vector element order is kept (position is meaningful).
//   - Every name, kind and value is length-prefixed to avoid ambiguity.
func (ps *ParameterSet) Canonical() []byte {
	var buf bytes.Buffer
	ps.writeCanonical(&buf)
	return buf.Bytes()
}

func (ps *ParameterSet) writeCanonical(buf *bytes.Buffer) {
	tracked := make([]Field, 0, ps.Len())
	for _, f := range ps.Fields() {
		if f.Tracked {
			tracked = append(tracked, f)
		}
	}
	sort.Slice(tracked, func(i, j int) bool { return tracked[i].Name < tracked[j].Name })

	writeCount(buf, len(tracked))
	for _, f := range tracked {
		writeField(buf, []byte(f.Name))
		writeField(buf, []byte(f.Value.kind.String()))
		writeField(buf, canonicalValue(f.Value))
	}
}

func canonicalValue(v Value) []byte {
	var buf bytes.Buffer
	switch d := v.data.(type) {
	case bool:
		if d {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case int32:
		buf.WriteString(strconv.FormatInt(int64(d), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(d), 10))
	case float64:
		writeUint64(&buf, math.Float64bits(d))
	case string:
		buf.WriteString(d)
	case []int32:
		writeCount(&buf, len(d))
		for _, e := range d {
			writeField(&buf, []byte(strconv.FormatInt(int64(e), 10)))
		}
	case []uint32:
		writeCount(&buf, len(d))
		for _, e := range d {
			writeField(&buf, []byte(strconv.FormatUint(uint64(e), 10)))
		}
	case []float64:
		writeCount(&buf, len(d))
		for _, e := range d {
			writeUint64(&buf, math.Float64bits(e))
		}
	case []string:
		writeCount(&buf, len(d))
		for _, e := range d {
			writeField(&buf, []byte(e))
		}
	case *ParameterSet:
		d.writeCanonical(&buf)
	}
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, data []byte) {
	writeUint64(buf, uint64(len(data)))
	buf.Write(data)
}

func writeCount(buf *bytes.Buffer, n int) {
	writeUint64(buf, uint64(n))
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

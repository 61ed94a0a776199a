// Package pset provides typed, ordered, immutable parameter sets for
// configuring framework producers, with merge-by-name composition and a
// tracked/untracked distinction carried per field.
//
// Features:
//   - Ordered fields of kind bool, int32, uint32, double, string, the vector
//     forms vint32, vuint32, vdouble, vstring, and nested parameter sets
//   - Builder with import/overlay composition (override wins)
//   - Provenance identity (ID) computed over tracked fields only
//   - Explicit Registry of named sets and producer declarations, no globals
//   - HCL configuration language loader
//   - TOML, JSON and YAML document encoding that preserves kinds and tracking
//   - Decoding into consumer structs through mapstructure
//
// Quick Start:
//
//	base, _ := pset.NewBuilder().
//	    Int32("readoutFrameSize", 10).
//	    Build()
//
//	block, err := pset.NewBuilder().
//	    Import(base).
//	    Bool("doNoise", true).
//	    UntrackedBool("RelabelHits", false).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	producer, _ := pset.NewProducer("simHcalUnsuppressedDigis", "HcalDigiProducer", block)
//	fmt.Println(producer.ID())
//
// Merge Semantics:
// A field declared explicitly in a builder replaces an imported field of the
// same name and keeps the imported field's position. The replacement is silent
// by default; see ShadowPolicy.
//
// Thread Safety:
// A built ParameterSet never changes and may be shared freely. Registry is safe
// for concurrent use. Builder is not.
package pset

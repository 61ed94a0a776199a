package hcalsim

import (
	_ "embed"

	"github.com/lixenwraith/pset"
)

// SourceFile is the name LoadDefault reports in diagnostics.
const SourceFile = "hcal_unsuppressed_digis.hcl"

// Source is the default configuration in the configuration language.
//
//go:embed hcal_unsuppressed_digis.hcl
var Source []byte

// LoadDefault registers the declarations of Source into reg.
func LoadDefault(reg *pset.Registry, opts ...pset.LoadOption) error {
	return pset.LoadHCL(Source, SourceFile, reg, opts...)
}

// Package hcalsim assembles the configuration of the HCAL unsuppressed-digi
// producer and implements the producer's configuration-reading side.
//
// The configuration is built in three steps, each registered by name:
//
//	hcalSimParameters         per-subdetector readout constants (imported base)
//	hcalSimBlock              hcalSimParameters + noise, timing and relabeling switches
//	simHcalUnsuppressedDigis  producer of type HcalDigiProducer configured by hcalSimBlock
//
// Configure builds them in Go; LoadDefault loads the same declarations from
// the embedded configuration file. Both produce identical sets.
package hcalsim

import (
	"fmt"

	"github.com/lixenwraith/pset"
)

const (
	ProducerLabel     = "simHcalUnsuppressedDigis"
	ProducerType      = "HcalDigiProducer"
	SimParametersName = "hcalSimParameters"
	SimBlockName      = "hcalSimBlock"
)

// Relabeling tables, indexed by layer. Eta1 covers |ieta| < 17, Eta17 the rest.
var (
	eta1  = []int32{1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 5, 5}
	eta17 = []int32{1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4}
)

// Subdetector readout constants for hcalSimParameters. These are
// representative values in the usual ranges, not a released calibration.
var (
	hbSamplingFactors = []float64{
		125.44, 125.54, 125.32, 125.13, 124.46, 125.01, 125.22, 125.48,
		124.45, 125.90, 125.83, 127.01, 126.82, 129.73, 131.83, 143.52,
	}
	heSamplingFactors = []float64{
		210.55, 197.93, 186.12, 189.64, 189.63, 190.28, 189.61,
		189.60, 190.12, 191.22, 190.90, 193.06, 188.42, 188.42,
	}
)

func subdetBlock(frame, maxBin int32, sampling, pe2fC, simHitToPE, phase float64, firstRing int32) *pset.Builder {
	return pset.NewBuilder().
		Int32("readoutFrameSize", frame).
		Int32("binOfMaximum", maxBin).
		Double("samplingFactor", sampling).
		Double("photoelectronsToAnalog", pe2fC).
		Double("simHitToPhotoelectrons", simHitToPE).
		Bool("syncPhase", true).
		Double("timePhase", phase).
		Bool("doPhotoStatistics", true).
		Int32("firstRing", firstRing)
}

// SimParameters builds hcalSimParameters, the imported base block.
func SimParameters() (*pset.ParameterSet, error) {
	hb, err := subdetBlock(10, 5, 125.44, 0.3305, 2000.0, 5.0, 1).
		VDouble("samplingFactors", hbSamplingFactors...).
		Bool("timeSmearing", true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("hb: %w", err)
	}
	he, err := subdetBlock(10, 5, 210.55, 0.3305, 2000.0, 5.0, 16).
		VDouble("samplingFactors", heSamplingFactors...).
		Bool("timeSmearing", true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("he: %w", err)
	}
	ho, err := subdetBlock(10, 5, 231.0, 0.24, 4000.0, 5.0, 1).Build()
	if err != nil {
		return nil, fmt.Errorf("ho: %w", err)
	}
	hf1, err := subdetBlock(4, 3, 0.383, 2.79, 6.0, 14.0, 29).Build()
	if err != nil {
		return nil, fmt.Errorf("hf1: %w", err)
	}
	hf2, err := subdetBlock(4, 3, 0.368, 1.843, 6.0, 13.0, 29).Build()
	if err != nil {
		return nil, fmt.Errorf("hf2: %w", err)
	}
	zdc, err := subdetBlock(10, 5, 1.0, 1.0, 1.0, -4.0, 1).Build()
	if err != nil {
		return nil, fmt.Errorf("zdc: %w", err)
	}

	return pset.NewBuilder().
		PSet("hb", hb).
		PSet("he", he).
		PSet("ho", ho).
		PSet("hf1", hf1).
		PSet("hf2", hf2).
		PSet("zdc", zdc).
		Build()
}

// relabelRules builds the untracked RelabelRules block.
func relabelRules() (*pset.ParameterSet, error) {
	return pset.NewBuilder().
		UntrackedVInt32("Eta1", eta1...).
		UntrackedVInt32("Eta17", eta17...).
		Build()
}

// SimBlock builds hcalSimBlock by overlaying the simulation switches on base.
func SimBlock(base *pset.ParameterSet) (*pset.ParameterSet, error) {
	rules, err := relabelRules()
	if err != nil {
		return nil, fmt.Errorf("RelabelRules: %w", err)
	}

	return pset.NewBuilder().
		Import(base).
		// cells with MC signal get noise added
		Bool("doNoise", true).
		// cells with no MC signal get an empty signal, which doNoise may fill
		Bool("doEmpty", true).
		Bool("doHPDNoise", false).
		Bool("doIonFeedback", true).
		Bool("doThermalNoise", true).
		Bool("doTimeSlew", true).
		Bool("doHFWindow", true).
		String("hitsProducer", "g4SimHits").
		Bool("injectTestHits", false).
		UntrackedBool("RelabelHits", false).
		UntrackedPSet("RelabelRules", rules).
		Build()
}

// UnsuppressedDigis declares the producer configured by block.
func UnsuppressedDigis(block *pset.ParameterSet) (*pset.Producer, error) {
	return pset.NewProducer(ProducerLabel, ProducerType, block)
}

// Configure builds the three declarations and registers them into reg.
func Configure(reg *pset.Registry) error {
	base, err := SimParameters()
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", SimParametersName, err)
	}
	if err := reg.RegisterPSet(SimParametersName, base); err != nil {
		return err
	}

	block, err := SimBlock(base)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", SimBlockName, err)
	}
	if err := reg.RegisterPSet(SimBlockName, block); err != nil {
		return err
	}

	producer, err := UnsuppressedDigis(block)
	if err != nil {
		return err
	}
	return reg.RegisterProducer(producer)
}

package hcalsim

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/pset"
	"go.uber.org/zap"
)

var (
	ErrEmptyRelabelRules = errors.New("relabel rules are empty")
	ErrInvalidRelabel    = errors.New("invalid relabel rule")
	ErrLayerOutOfRange   = errors.New("layer out of range")
)

// Subdetector identifies an HCAL readout partition.
type Subdetector int

const (
	HB Subdetector = iota + 1
	HE
	HO
	HF
	ZDC
)

func (s Subdetector) String() string {
	switch s {
	case HB:
		return "HB"
	case HE:
		return "HE"
	case HO:
		return "HO"
	case HF:
		return "HF"
	case ZDC:
		return "ZDC"
	}
	return fmt.Sprintf("Subdetector(%d)", int(s))
}

// Collection returns the digi collection type a subdetector's digis go to.
// Barrel and endcap share one collection.
func (s Subdetector) Collection() string {
	switch s {
	case HB, HE:
		return "HBHEDigiCollection"
	case HO:
		return "HODigiCollection"
	case HF:
		return "HFDigiCollection"
	case ZDC:
		return "ZDCDigiCollection"
	}
	return ""
}

// SubdetParameters is one subdetector block of hcalSimParameters.
type SubdetParameters struct {
	ReadoutFrameSize       int32     `pset:"readoutFrameSize"`
	BinOfMaximum           int32     `pset:"binOfMaximum"`
	SamplingFactor         float64   `pset:"samplingFactor"`
	PhotoelectronsToAnalog float64   `pset:"photoelectronsToAnalog"`
	SimHitToPhotoelectrons float64   `pset:"simHitToPhotoelectrons"`
	SyncPhase              bool      `pset:"syncPhase"`
	TimePhase              float64   `pset:"timePhase"`
	DoPhotoStatistics      bool      `pset:"doPhotoStatistics"`
	FirstRing              int32     `pset:"firstRing"`
	SamplingFactors        []float64 `pset:"samplingFactors"` // hb, he only
	TimeSmearing           bool      `pset:"timeSmearing"`    // hb, he only
}

// RelabelRules maps a layer index to a depth segment, one table per eta region.
type RelabelRules struct {
	Eta1  []int32 `pset:"Eta1"`
	Eta17 []int32 `pset:"Eta17"`
}

// Table returns the table used for ieta: Eta1 below |ieta| 17, Eta17 from 17 on.
func (r RelabelRules) Table(ieta int) []int32 {
	if ieta < 0 {
		ieta = -ieta
	}
	if ieta >= 17 {
		return r.Eta17
	}
	return r.Eta1
}

// Depth returns the depth segment of a 0-based layer at ieta.
func (r RelabelRules) Depth(ieta, layer int) (int32, error) {
	if ieta == 0 {
		return 0, fmt.Errorf("%w: ieta must be non-zero", ErrInvalidRelabel)
	}
	table := r.Table(ieta)
	if layer < 0 || layer >= len(table) {
		return 0, fmt.Errorf("%w: layer %d at ieta %d, table has %d entries", ErrLayerOutOfRange, layer, ieta, len(table))
	}
	return table[layer], nil
}

func (r RelabelRules) validate() error {
	tables := []struct {
		name  string
		table []int32
	}{
		{"Eta1", r.Eta1},
		{"Eta17", r.Eta17},
	}
	for _, t := range tables {
		if len(t.table) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyRelabelRules, t.name)
		}
		for i, depth := range t.table {
			if depth <= 0 {
				return fmt.Errorf("%w: %s[%d] = %d, depths are positive", ErrInvalidRelabel, t.name, i, depth)
			}
		}
	}
	return nil
}

// DigiSettings is what HcalDigiProducer reads from its parameter set.
type DigiSettings struct {
	HB  SubdetParameters `pset:"hb"`
	HE  SubdetParameters `pset:"he"`
	HO  SubdetParameters `pset:"ho"`
	HF1 SubdetParameters `pset:"hf1"`
	HF2 SubdetParameters `pset:"hf2"`
	ZDC SubdetParameters `pset:"zdc"`

	DoNoise        bool   `pset:"doNoise"`
	DoEmpty        bool   `pset:"doEmpty"`
	DoHPDNoise     bool   `pset:"doHPDNoise"`
	DoIonFeedback  bool   `pset:"doIonFeedback"`
	DoThermalNoise bool   `pset:"doThermalNoise"`
	DoTimeSlew     bool   `pset:"doTimeSlew"`
	DoHFWindow     bool   `pset:"doHFWindow"`
	HitsProducer   string `pset:"hitsProducer"`
	InjectTestHits bool   `pset:"injectTestHits"`

	RelabelHits  bool         `pset:"RelabelHits"`
	RelabelRules RelabelRules `pset:"RelabelRules"`
}

// optionalSettings lists the fields a configuration may leave out.
func optionalSettings() []string {
	optional := []string{"RelabelHits", "RelabelRules"}
	for _, block := range []string{"ho", "hf1", "hf2", "zdc"} {
		optional = append(optional, block+".samplingFactors", block+".timeSmearing")
	}
	return optional
}

// ReadSettings decodes ps strictly into DigiSettings.
func ReadSettings(ps *pset.ParameterSet) (DigiSettings, error) {
	var s DigiSettings
	if err := ps.DecodeStrict(&s, optionalSettings()...); err != nil {
		return DigiSettings{}, err
	}
	if s.RelabelHits {
		if err := s.RelabelRules.validate(); err != nil {
			return DigiSettings{}, err
		}
	}
	return s, nil
}

// Product is a data product the producer puts into each event.
type Product struct {
	Type     string
	Instance string
}

func (p Product) String() string {
	return p.Type + ":" + p.Instance
}

// Hit is a simulated energy deposit in one readout cell.
type Hit struct {
	Subdet Subdetector
	Ieta   int
	Iphi   int
	Depth  int
	Energy float64 // GeV
}

// testHits are the fixed hits injected when injectTestHits is set.
var testHits = []Hit{
	{Subdet: HB, Ieta: 1, Iphi: 1, Depth: 1, Energy: 0.855},
	{Subdet: HE, Ieta: 17, Iphi: 1, Depth: 1, Energy: 0.9},
	{Subdet: HO, Ieta: 1, Iphi: 1, Depth: 4, Energy: 0.45},
	{Subdet: HF, Ieta: 30, Iphi: 1, Depth: 1, Energy: 35.0},
	{Subdet: HF, Ieta: 30, Iphi: 1, Depth: 2, Energy: 48.0},
}

// DigiProducer is the configured HcalDigiProducer module.
type DigiProducer struct {
	label    string
	settings DigiSettings
	logger   *zap.Logger
}

// NewDigiProducer reads its configuration from ps. Field names and kinds
// are checked here, at module initialization.
func NewDigiProducer(label string, ps *pset.ParameterSet, logger *zap.Logger) (*DigiProducer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings, err := ReadSettings(ps)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	p := &DigiProducer{
		label:    label,
		settings: settings,
		logger:   logger.With(zap.String("producer", label)),
	}
	p.logger.Info("Configured digi producer",
		zap.String("hits_producer", settings.HitsProducer),
		zap.Bool("do_noise", settings.DoNoise),
		zap.Bool("do_time_slew", settings.DoTimeSlew),
		zap.Bool("relabel_hits", settings.RelabelHits),
		zap.Bool("inject_test_hits", settings.InjectTestHits),
		zap.String("config_id", ps.ID()))
	return p, nil
}

func (p *DigiProducer) Label() string { return p.label }

// Settings returns the decoded configuration.
func (p *DigiProducer) Settings() DigiSettings { return p.settings }

// Products lists the collections produced per event, all under the producer label.
func (p *DigiProducer) Products() []Product {
	types := []string{HB.Collection(), HO.Collection(), HF.Collection(), ZDC.Collection()}
	products := make([]Product, 0, len(types))
	for _, t := range types {
		products = append(products, Product{Type: t, Instance: p.label})
	}
	return products
}

// HitCorrection reports whether time-slew correction applies to subdet.
// Forward and ZDC hits are never corrected.
func (p *DigiProducer) HitCorrection(subdet Subdetector) bool {
	if !p.settings.DoTimeSlew {
		return false
	}
	switch subdet {
	case HB, HE, HO:
		return true
	}
	return false
}

// Depth relabels a hit layer to its depth segment. With RelabelHits off the
// layer is passed through unchanged.
func (p *DigiProducer) Depth(ieta, layer int) (int32, error) {
	if !p.settings.RelabelHits {
		return int32(layer), nil
	}
	return p.settings.RelabelRules.Depth(ieta, layer)
}

// TestHits returns the hits to inject into every event, or nil unless
// injectTestHits is set.
func (p *DigiProducer) TestHits() []Hit {
	if !p.settings.InjectTestHits {
		return nil
	}
	hits := make([]Hit, len(testHits))
	copy(hits, testHits)
	return hits
}

// Register adds the HcalDigiProducer maker to catalog.
func Register(catalog *pset.Catalog, logger *zap.Logger) error {
	return catalog.Add(ProducerType, func(label string, params *pset.ParameterSet) (pset.Module, error) {
		p, err := NewDigiProducer(label, params, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

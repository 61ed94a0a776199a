package pset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Producer is a named declaration pairing a producer type with its configuration.
// It is constructed once and never mutated.
type Producer struct {
	label    string
	typeName string
	params   *ParameterSet
}

// NewProducer declares a producer. Label and type name must be identifiers;
// a nil set is treated as empty.
func NewProducer(label, typeName string, params *ParameterSet) (*Producer, error) {
	if !isValidName(label) {
		return nil, fmt.Errorf("%w: producer label %q", ErrInvalidName, label)
	}
	if !isValidName(typeName) {
		return nil, fmt.Errorf("%w: producer type %q", ErrInvalidName, typeName)
	}
	if params == nil {
		params = emptySet()
	}
	return &Producer{label: label, typeName: typeName, params: params}, nil
}

func (p *Producer) Label() string { return p.label }
func (p *Producer) Type() string { return p.typeName }

// Params returns the producer's parameter set.
func (p *Producer) Params() *ParameterSet { return p.params }

// ID identifies the declaration: label, type, and the tracked parameters.
func (p *Producer) ID() string {
	h := sha256.New()
	h.Write([]byte(p.label))
	h.Write([]byte{0})
	h.Write([]byte(p.typeName))
	h.Write([]byte{0})
	h.Write([]byte(p.params.ID()))
	return hex.EncodeToString(h.Sum(nil))
}

// Registry holds the named parameter sets and producer declarations of one
// job configuration. Each name is written once; Seal makes the whole registry
// read-only before it is handed to a scheduler.
type Registry struct {
	psets     map[string]*ParameterSet
	producers map[string]*Producer
	order     []string // producer labels in declaration order
	sealed    bool
	logger    *zap.Logger
	mutex     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		psets:     make(map[string]*ParameterSet),
		producers: make(map[string]*Producer),
		logger:    zap.NewNop(),
	}
}

// WithLogger sets the registry logger and returns the registry.
func (r *Registry) WithLogger(logger *zap.Logger) *Registry {
	if logger != nil {
		r.mutex.Lock()
		r.logger = logger
		r.mutex.Unlock()
	}
	return r
}

// Logger returns the registry logger, for components that build into the registry.
func (r *Registry) Logger() *zap.Logger {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.logger
}

// RegisterPSet makes a named set available for import.
func (r *Registry) RegisterPSet(name string, ps *ParameterSet) error {
	if !isValidName(name) {
		return fmt.Errorf("%w: parameter set name %q", ErrInvalidName, name)
	}
	if ps == nil {
		ps = emptySet()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register parameter set %s", ErrSealed, name)
	}
	if _, exists := r.psets[name]; exists {
		return fmt.Errorf("parameter set %s: %w", name, ErrAlreadyRegistered)
	}
	r.psets[name] = ps
	r.logger.Debug("Registered parameter set", zap.String("name", name), zap.Int("fields", ps.Len()), zap.String("id", ps.ID()))
	return nil
}

// PSet returns the named set.
func (r *Registry) PSet(name string) (*ParameterSet, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ps, exists := r.psets[name]
	if !exists {
		return nil, fmt.Errorf("parameter set %s: %w", name, ErrNotRegistered)
	}
	return ps, nil
}

// PSetNames returns the registered set names, sorted.
func (r *Registry) PSetNames() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return sortedKeys(r.psets)
}

// RegisterProducer adds a producer declaration under its label.
func (r *Registry) RegisterProducer(p *Producer) error {
	if p == nil {
		return fmt.Errorf("%w: nil producer", ErrInvalidValue)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register producer %s", ErrSealed, p.label)
	}
	if _, exists := r.producers[p.label]; exists {
		return fmt.Errorf("producer %s: %w", p.label, ErrAlreadyRegistered)
	}
	r.producers[p.label] = p
	r.order = append(r.order, p.label)
	r.logger.Debug("Registered producer", zap.String("label", p.label), zap.String("type", p.typeName), zap.String("id", p.ID()))
	return nil
}

// Producer returns the producer declared under label.
func (r *Registry) Producer(label string) (*Producer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.producers[label]
	if !exists {
		return nil, fmt.Errorf("producer %s: %w", label, ErrNotRegistered)
	}
	return p, nil
}

// Producers returns the declarations in registration order.
func (r *Registry) Producers() []*Producer {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*Producer, 0, len(r.order))
	for _, label := range r.order {
		out = append(out, r.producers[label])
	}
	return out
}

// Seal makes the registry read-only. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.sealed
}

// Module is an instantiated producer.
type Module interface {
	Label() string
}

// Maker constructs a module from its label and configuration. Makers are
// where parameter names and types are checked against what the module reads.
type Maker func(label string, params *ParameterSet) (Module, error)

// Catalog maps producer type names to makers.
type Catalog struct {
	makers map[string]Maker
	mutex  sync.RWMutex
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{makers: make(map[string]Maker)}
}

// Add registers a maker for a producer type.
func (c *Catalog) Add(typeName string, maker Maker) error {
	if !isValidName(typeName) {
		return fmt.Errorf("%w: module type %q", ErrInvalidName, typeName)
	}
	if maker == nil {
		return fmt.Errorf("%w: nil maker for %s", ErrInvalidValue, typeName)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.makers[typeName]; exists {
		return fmt.Errorf("module type %s: %w", typeName, ErrAlreadyRegistered)
	}
	c.makers[typeName] = maker
	return nil
}

// Types returns the registered type names, sorted.
func (c *Catalog) Types() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return sortedKeys(c.makers)
}

// Make instantiates the module for a producer declaration.
func (c *Catalog) Make(p *Producer) (Module, error) {
	c.mutex.RLock()
	maker, exists := c.makers[p.typeName]
	c.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("producer %s: %w: %s", p.label, ErrUnknownModuleType, p.typeName)
	}
	m, err := maker(p.label, p.params)
	if err != nil {
		return nil, fmt.Errorf("failed to configure producer %s (%s): %w", p.label, p.typeName, err)
	}
	return m, nil
}

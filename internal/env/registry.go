package env

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

// Registered environment ids
const (
	SlidingPuzzleID = "n_Puzzle-v0"
	RushHourID      = "RushHour-v0"
)

// Options configure a new environment instance. Fields that do not apply
// to the requested puzzle are ignored.
type Options struct {
	// EnvID overrides the generated instance id
	EnvID string

	// Sliding puzzle
	Tiles        int
	StepLimit    int
	SolvableOnly bool
	ImagePath    string
	ImageSize    int
	FilterEffect string

	// Rush Hour
	Board        string
	OptimalSteps *int
	Catalog      codec.Catalog
	CatalogPath  string
	CellSize     int

	// Seed drives catalog selection and seedless resets; 0 uses the clock
	Seed int64

	Logger    zerolog.Logger
	Publisher events.Publisher
	Collector *experience.Collector
}

// Factory builds an environment from options
type Factory func(id string, opts Options) (Environment, error)

// Registry maps environment ids to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory; registering an id twice is an error
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("environment %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Make builds a new instance of the named environment
func (r *Registry) Make(name string, opts Options) (Environment, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownEnvironment, name)
	}

	if opts.EnvID == "" {
		opts.EnvID = uuid.New().String()
	}
	return factory(opts.EnvID, opts)
}

// IDs returns the registered environment ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewDefaultRegistry returns a registry holding both puzzles
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(SlidingPuzzleID, newSlidingEnv)
	_ = r.Register(RushHourID, newRushHourEnv)
	return r
}

var defaultRegistry = NewDefaultRegistry()

// Register adds a factory to the default registry
func Register(name string, factory Factory) error {
	return defaultRegistry.Register(name, factory)
}

// Make builds an environment from the default registry
func Make(name string, opts Options) (Environment, error) {
	return defaultRegistry.Make(name, opts)
}

// IDs lists the ids in the default registry
func IDs() []string {
	return defaultRegistry.IDs()
}

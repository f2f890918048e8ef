package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

var (
	ErrNotFound   = errors.New("environment not found")
	ErrAtCapacity = errors.New("server at capacity")
	ErrStopped    = errors.New("manager stopped")
)

const (
	DefaultMaxEnvs         = 100
	DefaultCleanupInterval = 5 * time.Minute
)

// Instance is a live environment plus the bookkeeping the manager needs.
// All access to the environment goes through Do, which serialises callers.
type Instance struct {
	env env.Environment

	mu           sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
}

func (i *Instance) ID() string   { return i.env.ID() }
func (i *Instance) Name() string { return i.env.Name() }

// Do runs fn with exclusive access to the environment and marks the
// instance active.
func (i *Instance) Do(fn func(e env.Environment) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastActivity = time.Now()
	return fn(i.env)
}

// LastActivity returns the time of the most recent Do call
func (i *Instance) LastActivity() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastActivity
}

// Summary describes an instance for listings. A sliding puzzle that has
// never been reset reports both Terminated and Truncated with zero steps;
// AwaitingReset tells that apart from a solved episode.
type Summary struct {
	ID           string
	Name         string
	Steps        int
	Terminated   bool
	Truncated    bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// AwaitingReset reports an environment whose first episode has not begun
func (s Summary) AwaitingReset() bool {
	return s.Steps == 0 && s.Terminated && s.Truncated
}

func (i *Instance) summary() Summary {
	i.mu.Lock()
	defer i.mu.Unlock()
	ep := i.env.Episode()
	return Summary{
		ID:           i.env.ID(),
		Name:         i.env.Name(),
		Steps:        ep.Steps,
		Terminated:   ep.Terminated,
		Truncated:    ep.Truncated,
		CreatedAt:    i.createdAt,
		LastActivity: i.lastActivity,
	}
}

// Config configures a Manager. Zero values pick the defaults; an
// IdleTimeout of zero disables eviction.
type Config struct {
	MaxEnvs         int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	Registry        *env.Registry

	// Logger is handed to every environment. Publisher and Collector fill
	// in options that leave them unset.
	Logger    zerolog.Logger
	Publisher events.Publisher
	Collector *experience.Collector
}

// Manager owns every environment served by a process
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	config    Config
	logger    zerolog.Logger
	onEvict   func(id string)

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager and starts idle eviction when configured
func NewManager(config Config) *Manager {
	if config.MaxEnvs <= 0 {
		config.MaxEnvs = DefaultMaxEnvs
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.Registry == nil {
		config.Registry = env.NewDefaultRegistry()
	}

	m := &Manager{
		instances: make(map[string]*Instance),
		config:    config,
		logger:    config.Logger.With().Str("component", "session_manager").Logger(),
		stop:      make(chan struct{}),
	}

	if config.IdleTimeout > 0 {
		m.wg.Add(1)
		go m.runCleanup()
	}
	return m
}

// Create makes a new environment from the registry
func (m *Manager) Create(name string, opts env.Options) (*Instance, error) {
	select {
	case <-m.stop:
		return nil, ErrStopped
	default:
	}

	if opts.Publisher == nil {
		opts.Publisher = m.config.Publisher
	}
	if opts.Collector == nil {
		opts.Collector = m.config.Collector
	}
	opts.Logger = m.config.Logger

	m.mu.RLock()
	current := len(m.instances)
	m.mu.RUnlock()
	if current >= m.config.MaxEnvs {
		m.logger.Warn().
			Int("current_envs", current).
			Int("max_envs", m.config.MaxEnvs).
			Msg("Rejecting environment creation - server at capacity")
		return nil, fmt.Errorf("%w: %d/%d environments active", ErrAtCapacity, current, m.config.MaxEnvs)
	}

	e, err := m.config.Registry.Make(name, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inst := &Instance{env: e, createdAt: now, lastActivity: now}

	m.mu.Lock()
	defer m.mu.Unlock()
	// re-check under the write lock; Make ran unlocked
	if len(m.instances) >= m.config.MaxEnvs {
		return nil, fmt.Errorf("%w: %d/%d environments active", ErrAtCapacity, len(m.instances), m.config.MaxEnvs)
	}
	if _, exists := m.instances[e.ID()]; exists {
		return nil, fmt.Errorf("environment %q already exists", e.ID())
	}
	m.instances[e.ID()] = inst

	m.logger.Info().
		Str("env_id", e.ID()).
		Str("env", name).
		Int("active_envs", len(m.instances)).
		Msg("Created environment")
	return inst, nil
}

// Get looks up an instance by id
func (m *Manager) Get(id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return inst, nil
}

// Close removes an instance
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(m.instances, id)
	m.logger.Info().Str("env_id", id).Int("active_envs", len(m.instances)).Msg("Closed environment")
	return nil
}

// List returns summaries ordered by creation time
func (m *Manager) List() []Summary {
	m.mu.RLock()
	refs := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		refs = append(refs, inst)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(refs))
	for _, inst := range refs {
		out = append(out, inst.summary())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Count returns the number of live instances
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// MaxEnvs returns the capacity limit
func (m *Manager) MaxEnvs() int {
	return m.config.MaxEnvs
}

// Registry returns the registry environments are made from
func (m *Manager) Registry() *env.Registry {
	return m.config.Registry
}

// Stop halts idle eviction and refuses further Create calls
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}

func (m *Manager) runCleanup() {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Msg("Environment cleanup goroutine panicked")
		}
	}()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

// evictIdle removes instances inactive for longer than the idle timeout.
// Instance locks are taken without holding the manager lock.
func (m *Manager) evictIdle(now time.Time) int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}

	m.mu.RLock()
	refs := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		refs = append(refs, inst)
	}
	m.mu.RUnlock()

	var idle []*Instance
	for _, inst := range refs {
		if now.Sub(inst.LastActivity()) > m.config.IdleTimeout {
			idle = append(idle, inst)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	m.mu.Lock()
	var evicted []string
	for _, inst := range idle {
		if current, ok := m.instances[inst.ID()]; ok && current == inst {
			delete(m.instances, inst.ID())
			evicted = append(evicted, inst.ID())
			m.logger.Info().
				Str("env_id", inst.ID()).
				Dur("inactive", now.Sub(inst.LastActivity())).
				Msg("Evicted idle environment")
		}
	}
	onEvict := m.onEvict
	m.mu.Unlock()

	if onEvict != nil {
		for _, id := range evicted {
			onEvict(id)
		}
	}
	return len(evicted)
}

// OnEvict registers fn to run, outside the manager lock, for each
// environment removed by idle eviction. It replaces any earlier hook.
func (m *Manager) OnEvict(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

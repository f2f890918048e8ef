package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GaugeFunc reports the current value of a named quantity, such as the
// number of live environments or connected websocket clients.
type GaugeFunc func() int

// Monitor periodically samples the goroutine count together with any
// registered gauges and warns when goroutines grow past a threshold.
type Monitor struct {
	mu             sync.RWMutex
	baseline       int
	current        int
	peak           int
	checkInterval  time.Duration
	alertThreshold int
	alertCooldown  time.Duration
	lastAlert      time.Time
	gauges         map[string]GaugeFunc
	gaugeValues    map[string]int
	numGoroutine   func() int
	now            func() time.Time
	logger         zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithInterval sets how often the monitor samples.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.checkInterval = d }
}

// WithAlertThreshold sets the goroutine count above which a warning is logged.
func WithAlertThreshold(n int) Option {
	return func(m *Monitor) { m.alertThreshold = n }
}

// WithAlertCooldown sets the minimum gap between two warnings.
func WithAlertCooldown(d time.Duration) Option {
	return func(m *Monitor) { m.alertCooldown = d }
}

// NewMonitor creates a monitor whose baseline is the goroutine count at creation.
func NewMonitor(logger zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		checkInterval:  30 * time.Second,
		alertThreshold: 1000,
		alertCooldown:  5 * time.Minute,
		gauges:         make(map[string]GaugeFunc),
		gaugeValues:    make(map[string]int),
		numGoroutine:   runtime.NumGoroutine,
		now:            time.Now,
		logger:         logger.With().Str("component", "monitor").Logger(),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.baseline = m.numGoroutine()
	m.current = m.baseline
	m.peak = m.baseline
	return m
}

// RegisterGauge adds a named value sampled on every check.
func (m *Monitor) RegisterGauge(name string, fn GaugeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// Start begins sampling in the background until Stop is called.
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info().
		Int("baseline", m.baseline).
		Dur("interval", m.checkInterval).
		Msg("Started monitoring")
}

// Stop ends sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopChan:
			return
		}
	}
}

// Check takes one sample and logs it. It is exported so callers can sample
// on demand.
func (m *Monitor) Check() Metrics {
	current := m.numGoroutine()

	m.mu.Lock()
	gauges := make(map[string]GaugeFunc, len(m.gauges))
	for name, fn := range m.gauges {
		gauges[name] = fn
	}
	m.mu.Unlock()

	// gauges may take their own locks, so sample them outside ours
	values := make(map[string]int, len(gauges))
	for name, fn := range gauges {
		values[name] = fn()
	}

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	m.gaugeValues = values

	now := m.now()
	shouldAlert := current > m.alertThreshold &&
		(m.lastAlert.IsZero() || now.Sub(m.lastAlert) > m.alertCooldown)
	if shouldAlert {
		m.lastAlert = now
	}
	metrics := m.metricsLocked()
	m.mu.Unlock()

	growthRate := 0.0
	if metrics.Baseline > 0 {
		growthRate = float64(metrics.Growth) / float64(metrics.Baseline) * 100
	}

	evt := m.logger.Debug().
		Int("goroutines", metrics.Current).
		Int("baseline", metrics.Baseline).
		Int("peak", metrics.Peak).
		Float64("growth_rate", growthRate)
	for _, name := range sortedKeys(metrics.Gauges) {
		evt = evt.Int(name, metrics.Gauges[name])
	}
	evt.Msg("Runtime metrics")

	if shouldAlert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", m.alertThreshold).
			Float64("growth_rate", growthRate).
			Msg("High goroutine count detected - possible leak")
	}
	return metrics
}

// Metrics returns the most recent sample.
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsLocked()
}

func (m *Monitor) metricsLocked() Metrics {
	gauges := make(map[string]int, len(m.gaugeValues))
	for k, v := range m.gaugeValues {
		gauges[k] = v
	}
	return Metrics{
		Current:  m.current,
		Baseline: m.baseline,
		Peak:     m.peak,
		Growth:   m.current - m.baseline,
		Gauges:   gauges,
	}
}

// Metrics is one monitoring sample.
type Metrics struct {
	Current  int            `json:"current"`
	Baseline int            `json:"baseline"`
	Peak     int            `json:"peak"`
	Growth   int            `json:"growth"`
	Gauges   map[string]int `json:"gauges"`
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package experience

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Collector stamps experiences, buffers them and flushes full batches to
// a persistence layer.
type Collector struct {
	mu          sync.Mutex
	buffer      *Buffer
	persistence PersistenceLayer
	batchSize   int
	logger      zerolog.Logger
}

// NewCollector wires a buffer to a persistence layer. A batchSize of 0
// keeps everything in the buffer until Flush is called.
func NewCollector(buffer *Buffer, persistence PersistenceLayer, batchSize int, logger zerolog.Logger) *Collector {
	if persistence == nil {
		persistence = NullPersistence{}
	}
	return &Collector{
		buffer:      buffer,
		persistence: persistence,
		batchSize:   batchSize,
		logger:      logger.With().Str("component", "experience_collector").Logger(),
	}
}

// Record adds one experience and flushes when a batch is complete
func (c *Collector) Record(ctx context.Context, exp *Experience) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	if exp.CollectedAt.IsZero() {
		exp.CollectedAt = time.Now()
	}
	if err := c.buffer.Add(exp); err != nil {
		return err
	}
	if c.batchSize > 0 && c.buffer.Size() >= c.batchSize {
		return c.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered experience to the persistence layer
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := c.buffer.GetAll()
	if len(batch) == 0 {
		return nil
	}
	if err := c.persistence.Write(ctx, batch); err != nil {
		c.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to persist experiences")
		return err
	}
	c.logger.Debug().Int("batch_size", len(batch)).Msg("Flushed experiences")
	return nil
}

// Buffer exposes the underlying buffer
func (c *Collector) Buffer() *Buffer {
	return c.buffer
}

// Close flushes what is left and closes buffer and persistence
func (c *Collector) Close(ctx context.Context) error {
	flushErr := c.Flush(ctx)
	if err := c.buffer.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if err := c.persistence.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

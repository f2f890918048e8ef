package experience

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrPersistenceNotConfigured is returned when writing to a closed layer
	ErrPersistenceNotConfigured = errors.New("persistence layer not configured")
	// ErrInvalidPersistenceType is returned when an unknown persistence type is specified
	ErrInvalidPersistenceType = errors.New("invalid persistence type")
)

// PersistenceType represents the type of persistence backend
type PersistenceType string

const (
	PersistenceTypeNone PersistenceType = "none"
	PersistenceTypeFile PersistenceType = "file"
)

// PersistenceConfig contains configuration for the persistence layer
type PersistenceConfig struct {
	Type        PersistenceType
	BaseDir     string
	MaxFileSize int64 // bytes per file before rotating; 0 disables rotation
	BatchSize   int
}

// DefaultPersistenceConfig returns a default persistence configuration
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type:        PersistenceTypeNone,
		BaseDir:     "experiences",
		MaxFileSize: 100 * 1024 * 1024,
		BatchSize:   1000,
	}
}

// PersistenceLayer stores experiences outside the process
type PersistenceLayer interface {
	Write(ctx context.Context, experiences []*Experience) error
	Read(ctx context.Context, envID string, limit int) ([]*Experience, error)
	Close() error
	Stats() PersistenceStats
}

// PersistenceStats contains statistics about persistence operations
type PersistenceStats struct {
	TotalWritten  int64
	TotalRead     int64
	BytesWritten  int64
	WriteErrors   int64
	ReadErrors    int64
	LastWriteTime time.Time
}

// FilePersistence writes experiences as JSON lines, one file per rotation
type FilePersistence struct {
	config PersistenceConfig
	logger zerolog.Logger

	mu    sync.RWMutex
	stats PersistenceStats

	currentFile *os.File
	currentSize int64
	fileIndex   int
}

// NewFilePersistence creates the base directory and opens the first file
func NewFilePersistence(config PersistenceConfig, logger zerolog.Logger) (*FilePersistence, error) {
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	fp := &FilePersistence{
		config: config,
		logger: logger.With().Str("component", "file_persistence").Logger(),
	}
	if err := fp.rotateFile(); err != nil {
		return nil, err
	}
	return fp, nil
}

// Write appends a batch of experiences to the current file
func (fp *FilePersistence) Write(ctx context.Context, experiences []*Experience) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.currentFile == nil {
		return ErrPersistenceNotConfigured
	}

	for _, exp := range experiences {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fp.config.MaxFileSize > 0 && fp.currentSize >= fp.config.MaxFileSize {
			if err := fp.rotateFile(); err != nil {
				fp.stats.WriteErrors++
				return fmt.Errorf("failed to rotate file: %w", err)
			}
		}

		s, err := exp.ToStruct()
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to convert experience: %w", err)
		}
		data, err := protojson.Marshal(s)
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to marshal experience: %w", err)
		}

		n, err := fp.currentFile.Write(append(data, '\n'))
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to write experience: %w", err)
		}

		fp.currentSize += int64(n)
		fp.stats.TotalWritten++
		fp.stats.BytesWritten += int64(n)
	}

	if err := fp.currentFile.Sync(); err != nil {
		fp.logger.Warn().Err(err).Msg("Failed to sync file")
	}
	fp.stats.LastWriteTime = time.Now()

	fp.logger.Debug().
		Int("batch_size", len(experiences)).
		Int64("file_size", fp.currentSize).
		Msg("Wrote experience batch to file")
	return nil
}

// Read returns up to limit experiences for envID ("" matches all) in
// write order. A limit of 0 means no limit.
func (fp *FilePersistence) Read(ctx context.Context, envID string, limit int) ([]*Experience, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(fp.config.BaseDir, "experiences_*.jsonl"))
	if err != nil {
		fp.stats.ReadErrors++
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(files)

	var experiences []*Experience
	for _, file := range files {
		if limit > 0 && len(experiences) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exps, err := readFile(file, envID, limit-len(experiences))
		if err != nil {
			fp.stats.ReadErrors++
			fp.logger.Warn().Err(err).Str("file", file).Msg("Failed to read experience file")
			continue
		}
		experiences = append(experiences, exps...)
	}

	fp.stats.TotalRead += int64(len(experiences))
	return experiences, nil
}

func readFile(filename, envID string, limit int) ([]*Experience, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var experiences []*Experience
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if limit > 0 && len(experiences) >= limit {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var s structpb.Struct
		if err := protojson.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal experience: %w", err)
		}
		exp, err := FromStruct(&s)
		if err != nil {
			return nil, err
		}
		if envID == "" || exp.EnvID == envID {
			experiences = append(experiences, exp)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return experiences, nil
}

func (fp *FilePersistence) rotateFile() error {
	if fp.currentFile != nil {
		if err := fp.currentFile.Close(); err != nil {
			fp.logger.Warn().Err(err).Msg("Failed to close previous file")
		}
	}

	timestamp := time.Now().Format("20060102_150405")
	var filename string
	for {
		filename = filepath.Join(fp.config.BaseDir, fmt.Sprintf("experiences_%s_%04d.jsonl", timestamp, fp.fileIndex))
		fp.fileIndex++
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			break
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	fp.currentFile = file
	fp.currentSize = 0

	fp.logger.Info().Str("filename", filename).Msg("Rotated to new experience file")
	return nil
}

// Close closes the current file
func (fp *FilePersistence) Close() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.currentFile == nil {
		return nil
	}
	err := fp.currentFile.Close()
	fp.currentFile = nil
	return err
}

// Stats returns persistence statistics
func (fp *FilePersistence) Stats() PersistenceStats {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.stats
}

// NullPersistence discards everything
type NullPersistence struct{}

func (NullPersistence) Write(context.Context, []*Experience) error { return nil }

func (NullPersistence) Read(context.Context, string, int) ([]*Experience, error) { return nil, nil }

func (NullPersistence) Close() error { return nil }

func (NullPersistence) Stats() PersistenceStats { return PersistenceStats{} }

// NewPersistenceLayer creates a persistence layer based on configuration
func NewPersistenceLayer(config PersistenceConfig, logger zerolog.Logger) (PersistenceLayer, error) {
	switch config.Type {
	case PersistenceTypeNone, "":
		return NullPersistence{}, nil
	case PersistenceTypeFile:
		return NewFilePersistence(config, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPersistenceType, config.Type)
	}
}

package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

var ErrEmptyCatalog = errors.New("catalog has no entries")

// CatalogEntry is one pre-generated Rush Hour instance
type CatalogEntry struct {
	OptimalSteps int
	Board        string
}

// Catalog is an ordered list of instances
type Catalog []CatalogEntry

// ParseCatalog reads lines of the form "<optimal-steps> <board> [...]".
// Blank lines are skipped and trailing fields ignored.
func ParseCatalog(r io.Reader) (Catalog, error) {
	var catalog Catalog
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("catalog line %d: expected steps and board", line)
		}
		steps, err := strconv.Atoi(fields[0])
		if err != nil || steps < 0 {
			return nil, fmt.Errorf("catalog line %d: invalid step count %q", line, fields[0])
		}
		if _, err := DecodeVehicleBoard(fields[1]); err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		catalog = append(catalog, CatalogEntry{OptimalSteps: steps, Board: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return catalog, nil
}

// LoadCatalog parses the catalog file at path
func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// Random picks an entry uniformly
func (c Catalog) Random(rng *rand.Rand) (CatalogEntry, error) {
	if len(c) == 0 {
		return CatalogEntry{}, ErrEmptyCatalog
	}
	return c[rng.Intn(len(c))], nil
}

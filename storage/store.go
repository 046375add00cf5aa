/*
	Package storage persists labeled samples.  Concrete engines register
	themselves at init time and are selected by name from the [store] section of
	the configuration.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
)

// ErrNotFound is returned when a sample ID is not in a store.
var ErrNotFound = errors.New("sample not found")

// DefaultEngine is used when the configuration names no engine.
const DefaultEngine = "badger"

// Config is the [store] section of a configuration.
type Config struct {
	Engine      string `toml:"engine"`
	Path        string `toml:"path"`
	Bucket      string `toml:"bucket"`
	CacheMB     int    `toml:"cache_mb"`
	Compression string `toml:"compression"`

	// InMemory keeps an embedded engine's data in memory only, e.g., for tests.
	InMemory bool `toml:"in_memory"`
}

// EngineName returns the configured engine or the default.
func (c Config) EngineName() string {
	if c.Engine == "" {
		return DefaultEngine
	}
	return c.Engine
}

// Codec returns the sample codec using the configured compression.
func (c Config) Codec() (sample.Codec, error) {
	compression, err := dvid.ParseCompression(c.Compression)
	if err != nil {
		return sample.Codec{}, err
	}
	return sample.Codec{Compression: compression}, nil
}

// SampleStore persists encoded samples by ID.
type SampleStore interface {
	// PutSample stores a sample under its ID, replacing any previous one.
	PutSample(ctx context.Context, s *sample.Sample) error

	// GetSample returns a stored sample or ErrNotFound.
	GetSample(ctx context.Context, id string) (*sample.Sample, error)

	// SampleIDs returns the IDs of all stored samples in sorted order.
	SampleIDs(ctx context.Context) ([]string, error)

	// DeleteSample removes a stored sample or returns ErrNotFound.
	DeleteSample(ctx context.Context, id string) error

	Close() error
	String() string
}

// Engine opens sample stores of one kind.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version
	NewStore(c Config) (SampleStore, error)
}

var availEngines map[string]Engine

// RegisterEngine makes a storage engine available.
func RegisterEngine(e Engine) {
	if availEngines == nil {
		availEngines = make(map[string]Engine)
	}
	availEngines[e.GetName()] = e
}

// GetEngine returns the engine registered under name.
func GetEngine(name string) (Engine, error) {
	e, found := availEngines[name]
	if !found {
		return nil, fmt.Errorf("storage engine %q not available (have %s)", name, EnginesAvailable())
	}
	return e, nil
}

// EnginesAvailable returns a description of the available storage engines.
func EnginesAvailable() string {
	var engines []string
	for _, e := range availEngines {
		engines = append(engines, fmt.Sprintf("%s [%s]", e.GetName(), e.GetSemVer()))
	}
	sort.Strings(engines)
	return strings.Join(engines, ", ")
}

// Open returns a store from the configured engine.
func Open(c Config) (SampleStore, error) {
	e, err := GetEngine(c.EngineName())
	if err != nil {
		return nil, err
	}
	store, err := e.NewStore(c)
	if err != nil {
		return nil, fmt.Errorf("can't open %s store: %v", e.GetName(), err)
	}
	dvid.Infof("Opened sample store: %s\n", store)
	return store, nil
}

/*
	Package config loads trainlabels TOML configurations.  A configuration holds
	the ambient settings (logging, store, kafka, server, auth), the data sections
	that make up a sample, and the ordered transform sections of a pipeline.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/twinj/uuid"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
	"github.com/janelia-flyem/trainlabels/transform"
	"github.com/janelia-flyem/trainlabels/volume"
)

const (
	// DefaultWebAddress is the default address of the HTTP API.
	DefaultWebAddress = "localhost:8300"

	// DefaultTokenHours is the default lifetime of issued tokens.
	DefaultTokenHours = 24 * 7
)

// ServerConfig is the [server] section.
type ServerConfig struct {
	HTTPAddress string   `toml:"http_address"`
	CORSDomains []string `toml:"cors_domains"`
}

// AuthConfig is the [auth] section.  A non-empty secret key requires a bearer
// token on all API calls except help.
type AuthConfig struct {
	SecretKey  string `toml:"secret_key"`
	TokenHours int    `toml:"token_hours"`
}

// Config is a complete trainlabels configuration.
type Config struct {
	Logging   dvid.LogConfig
	Store     storage.Config
	Kafka     storage.KafkaConfig
	Server    ServerConfig
	Auth      AuthConfig
	Data      []DataConfig       `toml:"data"`
	Transform []transform.Config `toml:"transform"`

	location string
}

// Load reads, validates and decodes a TOML configuration file.  Relative paths
// are taken relative to the file's directory.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	c, err := Decode(string(content), filepath.Dir(filename))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	c.location = filename
	return c, nil
}

// Decode validates and decodes TOML content with relative paths based at
// configDir.
func Decode(content, configDir string) (*Config, error) {
	doc := make(map[string]interface{})
	if _, err := toml.Decode(content, &doc); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v: %w", err, transform.ErrConfig)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	c := new(Config)
	md, err := toml.Decode(content, c)
	if err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v: %w", err, transform.ErrConfig)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		dvid.Warningf("Ignoring unknown configuration keys: %v\n", undecoded)
	}
	for i, dc := range c.Data {
		if err := dc.check(); err != nil {
			return nil, fmt.Errorf("data section %d: %w", i, err)
		}
	}
	if err := c.convertPathsToAbsolute(configDir); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	return c, nil
}

// Some settings can be given as relative paths.  This converts them in-place to
// absolute paths relative to the configuration's directory.
func (c *Config) convertPathsToAbsolute(configDir string) error {
	var err error

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = dvid.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}

	// [store].path
	if c.Store.Path != "" {
		c.Store.Path, err = dvid.ConvertToAbsolute(c.Store.Path, configDir)
		if err != nil {
			return fmt.Errorf("error converting store path to absolute path: %q", c.Store.Path)
		}
	}

	// [[data]].file
	for i := range c.Data {
		if c.Data[i].File == "" {
			continue
		}
		c.Data[i].File, err = dvid.ConvertToAbsolute(c.Data[i].File, configDir)
		if err != nil {
			return fmt.Errorf("error converting file of data %q to absolute path", c.Data[i].Name)
		}
	}
	return nil
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string {
	return c.location
}

// HTTPAddress returns the configured HTTP address or the default.
func (c *Config) HTTPAddress() string {
	if c.Server.HTTPAddress == "" {
		return DefaultWebAddress
	}
	return c.Server.HTTPAddress
}

// TokenHours returns the configured token lifetime or the default.
func (c *Config) TokenHours() int {
	if c.Auth.TokenHours <= 0 {
		return DefaultTokenHours
	}
	return c.Auth.TokenHours
}

// Pipeline builds the configured transforms in order.
func (c *Config) Pipeline() (*transform.Pipeline, error) {
	return transform.NewPipelineFromConfigs(c.Transform)
}

// Volumes loads or fills every data section.
func (c *Config) Volumes() (map[string]*volume.Volume, error) {
	vols := make(map[string]*volume.Volume, len(c.Data))
	for _, dc := range c.Data {
		if _, found := vols[dc.Name]; found {
			return nil, fmt.Errorf("data %q given twice: %w", dc.Name, transform.ErrConfig)
		}
		v, err := dc.Volume()
		if err != nil {
			return nil, err
		}
		vols[dc.Name] = v
	}
	return vols, nil
}

// Sample builds a sample from the data sections.  An empty id gets a random
// UUID.
func (c *Config) Sample(id string) (*sample.Sample, error) {
	vols, err := c.Volumes()
	if err != nil {
		return nil, err
	}
	return newSample(id, vols)
}

func newSample(id string, vols map[string]*volume.Volume) (*sample.Sample, error) {
	names := make([]string, 0, len(vols))
	for name := range vols {
		names = append(names, name)
	}
	sort.Strings(names)

	s := sample.New(id)
	for _, name := range names {
		if err := s.Set(name, vols[name]); err != nil {
			return nil, fmt.Errorf("data %q: %w", name, err)
		}
	}
	return s, nil
}

// SampleSource loads the data sections once and returns a function giving a
// fresh sample with a new ID on every call.  Volumes are shared between the
// returned samples since transforms never modify their inputs.
func (c *Config) SampleSource() (func() (*sample.Sample, error), error) {
	vols, err := c.Volumes()
	if err != nil {
		return nil, err
	}
	base, err := newSample("", vols)
	if err != nil {
		return nil, err
	}
	return func() (*sample.Sample, error) {
		s := base.Clone()
		s.ID = uuid.NewV4().String()
		return s, nil
	}, nil
}

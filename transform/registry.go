package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/janelia-flyem/trainlabels/volume"
)

// Config is the union of all transform parameters as read from a TOML
// [[transform]] section or a JSON pipeline description.  Unset optional fields
// take the variant's defaults.
type Config struct {
	Type      string   `toml:"type" json:"type"`
	Source    string   `toml:"source" json:"source"`
	Target    string   `toml:"target" json:"target"`
	Rebalance *bool    `toml:"rebalance" json:"rebalance,omitempty"`
	Recompute *bool    `toml:"recompute" json:"recompute,omitempty"`
	BaseW     *float64 `toml:"base_w" json:"base_w,omitempty"`
	Dst       [][3]int `toml:"dst" json:"dst,omitempty"`
	IDs       []uint64 `toml:"ids" json:"ids,omitempty"`
	Crop      *[3]int  `toml:"crop" json:"crop,omitempty"`
	CropSize  *[3]int  `toml:"crop_size" json:"crop_size,omitempty"`
	Mask      string   `toml:"mask" json:"mask,omitempty"`
}

func (c Config) keys() keys {
	return keys{Source: c.Source, Target: c.Target}
}

func (c Config) offsets() []volume.Offset {
	dst := make([]volume.Offset, len(c.Dst))
	for i, d := range c.Dst {
		dst[i] = volume.Offset(d)
	}
	return dst
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func floatOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

// Constructor builds a transform from a generic Config.
type Constructor func(c Config) (Transform, error)

// compiled holds the transform types registered at init time.
var compiled map[string]Constructor

// Register makes a transform type available to New.  It panics on a duplicate
// name since registration happens at init time.
func Register(name string, ctor Constructor) {
	if compiled == nil {
		compiled = make(map[string]Constructor)
	}
	if _, found := compiled[name]; found {
		panic(fmt.Sprintf("transform type %q registered twice", name))
	}
	compiled[name] = ctor
}

// New builds a transform of the configured type.
func New(c Config) (Transform, error) {
	ctor, found := compiled[c.Type]
	if !found {
		return nil, fmt.Errorf("unknown transform type %q (compiled: %s): %w", c.Type, strings.Join(CompiledTypes(), ", "), ErrConfig)
	}
	return ctor(c)
}

// CompiledTypes returns the sorted names of registered transform types.
func CompiledTypes() []string {
	names := make([]string, 0, len(compiled))
	for name := range compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package config

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/transform"
	"github.com/janelia-flyem/trainlabels/volume"
)

// DefaultDType is the element type of raw data files when none is given.
const DefaultDType = "float64"

var dtypeSizes = map[string]int{
	"uint8":   1,
	"uint16":  2,
	"uint32":  4,
	"uint64":  8,
	"float32": 4,
	"float64": 8,
}

// Filler gives the value of a data volume that has no file.
type Filler struct {
	Type  string  `toml:"type"`
	Value float64 `toml:"value"`
}

func (f *Filler) value() (float64, error) {
	if f == nil {
		return 0, nil
	}
	switch f.Type {
	case "", "zero":
		return 0, nil
	case "one":
		return 1, nil
	case "constant":
		return f.Value, nil
	default:
		return 0, fmt.Errorf("unknown filler type %q: %w", f.Type, transform.ErrConfig)
	}
}

// DataConfig is a [[data]] section describing one named volume.  The volume is
// read from a raw little-endian file of the given dtype or, without a file,
// filled with a constant.  The shape is always required.
type DataConfig struct {
	Name   string  `toml:"name"`
	File   string  `toml:"file"`
	DType  string  `toml:"dtype"`
	Shape  []int   `toml:"shape"`
	Filler *Filler `toml:"filler"`
}

func (dc DataConfig) dtype() string {
	if dc.DType == "" {
		return DefaultDType
	}
	return dc.DType
}

func (dc DataConfig) check() error {
	if dc.Name == "" {
		return fmt.Errorf("data section needs a name: %w", transform.ErrConfig)
	}
	if len(dc.Shape) == 0 {
		if dc.File == "" {
			return fmt.Errorf("data %q needs either a file or a shape: %w", dc.Name, transform.ErrConfig)
		}
		return fmt.Errorf("data %q file %s needs a shape: %w", dc.Name, dc.File, transform.ErrConfig)
	}
	if len(dc.Shape) != 3 && len(dc.Shape) != 4 {
		return fmt.Errorf("data %q shape %v must be (z,y,x) or (c,z,y,x): %w", dc.Name, dc.Shape, transform.ErrConfig)
	}
	if _, found := dtypeSizes[dc.dtype()]; !found {
		return fmt.Errorf("data %q has unknown dtype %q: %w", dc.Name, dc.DType, transform.ErrConfig)
	}
	if dc.File == "" {
		if _, err := dc.Filler.value(); err != nil {
			return fmt.Errorf("data %q: %w", dc.Name, err)
		}
	}
	return nil
}

// Volume reads or fills the configured volume.
func (dc DataConfig) Volume() (*volume.Volume, error) {
	if err := dc.check(); err != nil {
		return nil, err
	}
	if dc.File == "" {
		value, _ := dc.Filler.value()
		return volume.Filled(value, dc.Shape...), nil
	}
	raw, err := os.ReadFile(dc.File)
	if err != nil {
		return nil, fmt.Errorf("data %q: %v", dc.Name, err)
	}
	data, err := decodeRaw(raw, dc.dtype())
	if err != nil {
		return nil, fmt.Errorf("data %q file %s: %w", dc.Name, dc.File, err)
	}
	v, err := volume.FromData(dc.Shape, data)
	if err != nil {
		return nil, fmt.Errorf("data %q file %s: %w", dc.Name, dc.File, err)
	}
	dvid.Debugf("Read data %q (%s) from %s: %v\n", dc.Name, humanize.Bytes(uint64(len(raw))), dc.File, v)
	return v, nil
}

// decodeRaw converts little-endian elements of the given dtype into float64.
func decodeRaw(raw []byte, dtype string) ([]float64, error) {
	size := dtypeSizes[dtype]
	if size == 0 {
		return nil, fmt.Errorf("unknown dtype %q: %w", dtype, transform.ErrConfig)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %s elements: %w", len(raw), dtype, volume.ErrShape)
	}
	data := make([]float64, len(raw)/size)
	le := binary.LittleEndian
	for i := range data {
		b := raw[i*size : (i+1)*size]
		switch dtype {
		case "uint8":
			data[i] = float64(b[0])
		case "uint16":
			data[i] = float64(le.Uint16(b))
		case "uint32":
			data[i] = float64(le.Uint32(b))
		case "uint64":
			data[i] = float64(le.Uint64(b))
		case "float32":
			data[i] = float64(math.Float32frombits(le.Uint32(b)))
		case "float64":
			data[i] = math.Float64frombits(le.Uint64(b))
		}
	}
	return data, nil
}

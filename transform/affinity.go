package transform

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/rebalance"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

func init() {
	Register(AffinityType, func(c Config) (Transform, error) {
		return NewAffinity(AffinityConfig{
			Dst:       c.offsets(),
			Source:    c.Source,
			Target:    c.Target,
			Crop:      (*volume.Offset)(c.Crop),
			CropSize:  c.CropSize,
			BaseW:     c.BaseW,
			Recompute: boolOr(c.Recompute, true),
		})
	})
}

const AffinityType = "affinity"

// AffinityConfig holds the parameters of an Affinity transform.
type AffinityConfig struct {
	Dst    []volume.Offset
	Source string
	Target string

	// Crop and CropSize, if set, crop every entry of the sample after labeling.
	Crop     *volume.Offset
	CropSize *[3]int

	// BaseW, if set, turns on per-channel rebalancing with that floor.
	BaseW *float64

	Recompute bool
}

// Affinity builds a multi-channel affinity label with one channel per offset.
type Affinity struct {
	keys
	dst       []volume.Offset
	crop      *volume.Offset
	cropSize  [3]int
	baseW     *float64
	recompute bool
}

func NewAffinity(c AffinityConfig) (*Affinity, error) {
	k := keys{Source: c.Source, Target: c.Target}
	if err := k.validate(AffinityType); err != nil {
		return nil, err
	}
	if len(c.Dst) == 0 {
		return nil, fmt.Errorf("affinity transform needs at least one offset: %w", ErrConfig)
	}
	for _, d := range c.Dst {
		if d == (volume.Offset{}) {
			return nil, fmt.Errorf("affinity offset %s is zero: %w", d, ErrConfig)
		}
	}
	t := &Affinity{
		keys:      k,
		dst:       append([]volume.Offset(nil), c.Dst...),
		recompute: c.Recompute,
	}
	if c.BaseW != nil {
		if err := validBaseW(AffinityType, *c.BaseW); err != nil {
			return nil, err
		}
		baseW := *c.BaseW
		t.baseW = &baseW
	}
	if (c.Crop == nil) != (c.CropSize == nil) {
		return nil, fmt.Errorf("affinity crop and crop_size must be given together: %w", ErrConfig)
	}
	if c.Crop != nil {
		for i := 0; i < 3; i++ {
			if c.Crop[i] < 0 || c.CropSize[i] <= 0 {
				return nil, fmt.Errorf("bad affinity crop %s size %v: %w", *c.Crop, *c.CropSize, ErrConfig)
			}
		}
		crop := *c.Crop
		t.crop = &crop
		t.cropSize = *c.CropSize
	}
	return t, nil
}

func (t *Affinity) Type() string { return AffinityType }

// Offsets returns the affinity offset per output channel.
func (t *Affinity) Offsets() []volume.Offset {
	return append([]volume.Offset(nil), t.dst...)
}

// Apply labels affinities and, if configured, crops the whole sample.  All
// entries are staged and committed together, so a crop that doesn't fit some
// entry leaves the sample unchanged.
func (t *Affinity) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	seg, msk, err := s.Extract(t.Source)
	if err != nil {
		return nil, err
	}
	if t.recompute {
		if seg, err = labels.Recompute(seg); err != nil {
			return nil, err
		}
	}
	lbl, lmsk, err := labels.AffinityStack(seg, msk, t.dst)
	if err != nil {
		return nil, err
	}
	if t.baseW != nil {
		if lmsk, err = rebalance.PerChannel(lbl, lmsk, *t.baseW); err != nil {
			return nil, err
		}
	}
	if !lbl.SameShape(lmsk) {
		return nil, fmt.Errorf("affinity %v and mask %v of %q differ in shape: %w", lbl.Shape, lmsk.Shape, t.Source, volume.ErrShape)
	}

	staged := s.Entries()
	staged[t.Target] = lbl
	staged[sample.MaskKey(t.Target)] = lmsk
	if t.crop != nil {
		for k, v := range staged {
			cropped, err := volume.Crop(v, *t.crop, t.cropSize)
			if err != nil {
				return nil, fmt.Errorf("cropping %q: %w", k, err)
			}
			staged[k] = cropped
		}
		dvid.Debugf("Cropped %d entries of sample %s to %v at %s\n", len(staged), s.ID, t.cropSize, *t.crop)
	}
	s.Commit(staged)
	return s, nil
}

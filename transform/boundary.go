package transform

import (
	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/sample"
)

func init() {
	Register(BoundaryType, func(c Config) (Transform, error) {
		return NewBoundary(c.Source, c.Target, boolOr(c.Rebalance, true))
	})
}

const BoundaryType = "boundary"

// Boundary labels the background (ID 0) voxels of a boundary volume as a single
// binary channel.
type Boundary struct {
	keys
	Rebalance bool
}

func NewBoundary(source, target string, rebalance bool) (*Boundary, error) {
	k := keys{Source: source, Target: target}
	if err := k.validate(BoundaryType); err != nil {
		return nil, err
	}
	return &Boundary{keys: k, Rebalance: rebalance}, nil
}

func (b *Boundary) Type() string { return BoundaryType }

func (b *Boundary) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	bdr, msk, err := s.Extract(b.Source)
	if err != nil {
		return nil, err
	}
	// The expansion mask would exclude the very voxels being labeled, so only
	// the source mask is carried over.
	lbl, _, err := labels.MulticlassExpansion(bdr, []uint64{0})
	if err != nil {
		return nil, err
	}
	w, err := labelMask(lbl, msk, b.Rebalance, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Store(b.Target, lbl, w); err != nil {
		return nil, err
	}
	return s, nil
}

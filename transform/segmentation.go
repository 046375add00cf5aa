package transform

import (
	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

func init() {
	Register(SegmentationType, func(c Config) (Transform, error) {
		return NewSegmentation(c.Source, c.Target, boolOr(c.Recompute, true))
	})
}

const SegmentationType = "segmentation"

// Segmentation emits a segmentation and its mask as 4-D volumes, optionally
// relabeling connected components first.
type Segmentation struct {
	keys
	Recompute bool
}

func NewSegmentation(source, target string, recompute bool) (*Segmentation, error) {
	k := keys{Source: source, Target: target}
	if err := k.validate(SegmentationType); err != nil {
		return nil, err
	}
	return &Segmentation{keys: k, Recompute: recompute}, nil
}

func (t *Segmentation) Type() string { return SegmentationType }

func (t *Segmentation) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	seg, msk, err := s.Extract(t.Source)
	if err != nil {
		return nil, err
	}
	if t.Recompute {
		seg, err = labels.Recompute(seg)
	} else {
		seg, err = volume.Check(seg)
	}
	if err != nil {
		return nil, err
	}
	m, err := labelMask(seg, msk, false, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Store(t.Target, seg, m); err != nil {
		return nil, err
	}
	return s, nil
}

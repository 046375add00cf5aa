package transform

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/rebalance"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

func init() {
	Register(SemanticType, func(c Config) (Transform, error) {
		return NewSemantic(c.IDs, c.Source, c.Target, boolOr(c.Rebalance, true))
	})
}

const SemanticType = "semantic"

// Semantic expands a semantic segmentation into one binary channel per class ID.
type Semantic struct {
	keys
	IDs       []uint64
	Rebalance bool
}

func NewSemantic(ids []uint64, source, target string, rebalance bool) (*Semantic, error) {
	k := keys{Source: source, Target: target}
	if err := k.validate(SemanticType); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("semantic transform needs at least one id: %w", ErrConfig)
	}
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("semantic id %d listed twice: %w", id, ErrConfig)
		}
		seen[id] = true
	}
	return &Semantic{keys: k, IDs: append([]uint64(nil), ids...), Rebalance: rebalance}, nil
}

func (t *Semantic) Type() string { return SemanticType }

func (t *Semantic) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	sem, msk, err := s.Extract(t.Source)
	if err != nil {
		return nil, err
	}
	lbl, classMsk, err := labels.MulticlassExpansion(sem, t.IDs)
	if err != nil {
		return nil, err
	}
	m, err := volume.Mul(classMsk, msk)
	if err != nil {
		return nil, err
	}
	if t.Rebalance {
		if m, err = rebalance.PerChannel(lbl, m, 0); err != nil {
			return nil, err
		}
	}
	if err := s.Store(t.Target, lbl, m); err != nil {
		return nil, err
	}
	return s, nil
}

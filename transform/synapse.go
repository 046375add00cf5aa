package transform

import (
	"github.com/janelia-flyem/trainlabels/labels"
	"github.com/janelia-flyem/trainlabels/sample"
)

func init() {
	Register(SynapseType, func(c Config) (Transform, error) {
		return NewSynapse(c.Source, c.Target, boolOr(c.Rebalance, false), floatOr(c.BaseW, 0))
	})
}

const SynapseType = "synapse"

// Synapse collapses a synapse segmentation into presence/absence.
type Synapse struct {
	keys
	Rebalance bool
	BaseW     float64
}

func NewSynapse(source, target string, rebalance bool, baseW float64) (*Synapse, error) {
	k := keys{Source: source, Target: target}
	if err := k.validate(SynapseType); err != nil {
		return nil, err
	}
	if err := validBaseW(SynapseType, baseW); err != nil {
		return nil, err
	}
	return &Synapse{keys: k, Rebalance: rebalance, BaseW: baseW}, nil
}

func (t *Synapse) Type() string { return SynapseType }

func (t *Synapse) Apply(s *sample.Sample, p Params) (*sample.Sample, error) {
	syn, msk, err := s.Extract(t.Source)
	if err != nil {
		return nil, err
	}
	lbl, err := labels.Binarize(syn)
	if err != nil {
		return nil, err
	}
	w, err := labelMask(lbl, msk, t.Rebalance, t.BaseW)
	if err != nil {
		return nil, err
	}
	if err := s.Store(t.Target, lbl, w); err != nil {
		return nil, err
	}
	return s, nil
}

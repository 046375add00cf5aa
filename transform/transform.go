/*
	Package transform implements the label transforms that turn raw segmentation
	or boundary volumes in a sample into (label, mask) training pairs, and the
	Pipeline that applies them in order.

	Every transform computes its outputs before touching the sample, so a failed
	Apply leaves the sample as it was.
*/
package transform

import (
	"errors"
	"fmt"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/rebalance"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/volume"
)

// ErrConfig is returned for malformed transform parameters.
var ErrConfig = errors.New("bad transform config")

// Params are per-call values passed to every transform of a pipeline.
// Transforms ignore the values they don't use.
type Params struct {
	// ObjectID selects the object for instance transforms.  If nil, the object
	// at the center voxel is used.
	ObjectID *uint64
}

func (p Params) String() string {
	if p.ObjectID == nil {
		return "object: center"
	}
	return fmt.Sprintf("object: %d", *p.ObjectID)
}

// Transform applies one labeling rule to a sample.
type Transform interface {
	// Type returns the registered type name, e.g., "affinity".
	Type() string

	// Apply writes the transform's outputs into the sample and returns it.
	Apply(s *sample.Sample, p Params) (*sample.Sample, error)
}

// Targeter is implemented by transforms that can list the keys they write.
// Companion mask keys are implied.
type Targeter interface {
	Targets() []string
}

// keys holds the source and target keys shared by every variant.
type keys struct {
	Source string `toml:"source" json:"source"`
	Target string `toml:"target" json:"target"`
}

func (k keys) validate(typename string) error {
	if k.Source == "" {
		return fmt.Errorf("%s transform needs a source key: %w", typename, ErrConfig)
	}
	if k.Target == "" {
		return fmt.Errorf("%s transform needs a target key: %w", typename, ErrConfig)
	}
	if sample.IsMaskKey(k.Target) {
		return fmt.Errorf("%s target %q collides with mask naming: %w", typename, k.Target, ErrConfig)
	}
	return nil
}

// Targets returns the single target key.
func (k keys) Targets() []string {
	return []string{k.Target}
}

func validBaseW(typename string, baseW float64) error {
	if baseW < 0 || baseW >= 1 {
		return fmt.Errorf("%s base_w %g outside [0,1): %w", typename, baseW, ErrConfig)
	}
	return nil
}

// labelMask returns the source mask in the label's 4-D shape, optionally
// rebalanced.  A mask whose shape can't match the label is an ErrShape.
func labelMask(lbl, msk *volume.Volume, rebal bool, baseW float64) (*volume.Volume, error) {
	m, err := volume.Check(msk)
	if err != nil {
		return nil, err
	}
	if !m.SameShape(lbl) {
		return nil, fmt.Errorf("mask %v does not match label %v: %w", msk.Shape, lbl.Shape, volume.ErrShape)
	}
	if !rebal {
		return m, nil
	}
	w, rebalanced, err := rebalance.Binary(lbl, m, baseW)
	if err != nil {
		return nil, err
	}
	if !rebalanced {
		dvid.Debugf("Single-class label %v kept its mask unchanged\n", lbl.Shape)
	}
	return w, nil
}

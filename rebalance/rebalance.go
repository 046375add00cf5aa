/*
	Package rebalance computes inverse class-frequency weight masks so positive and
	negative voxels contribute equally to a training loss.
*/
package rebalance

import (
	"fmt"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/volume"
)

// Binary returns a weight mask for a binary label and validity mask.  Among the
// valid voxels (msk > 0), positives get weight n/(2*n1) and negatives n/(2*n0),
// each scaled by the mask value.  A nonzero baseW floors the negative weight at
// baseW times the positive weight.  If either class is absent, a copy of msk is
// returned with rebalanced false.
func Binary(lbl, msk *volume.Volume, baseW float64) (w *volume.Volume, rebalanced bool, err error) {
	if !lbl.SameShape(msk) {
		return nil, false, fmt.Errorf("label %v and mask %v differ: %w", lbl.Shape, msk.Shape, volume.ErrShape)
	}
	if baseW < 0 || baseW >= 1 {
		return nil, false, fmt.Errorf("base weight %g outside [0,1)", baseW)
	}

	var n0, n1 int
	for i, m := range msk.Data {
		if m <= 0 {
			continue
		}
		if lbl.Data[i] > 0 {
			n1++
		} else {
			n0++
		}
	}
	if n0 == 0 || n1 == 0 {
		dvid.Debugf("No rebalancing of %v label with %d positive and %d negative voxels\n", lbl.Shape, n1, n0)
		return msk.Clone(), false, nil
	}

	n := float64(n0 + n1)
	w1 := n / (2 * float64(n1))
	w0 := n / (2 * float64(n0))
	if floor := baseW * w1; w0 < floor {
		w0 = floor
	}

	w = volume.New(msk.Shape...)
	for i, m := range msk.Data {
		if lbl.Data[i] > 0 {
			w.Data[i] = m * w1
		} else {
			w.Data[i] = m * w0
		}
	}
	return w, true, nil
}

// PerChannel applies Binary independently to each channel of a multi-channel
// label and mask.  There is no normalization across channels.
func PerChannel(lbl, msk *volume.Volume, baseW float64) (*volume.Volume, error) {
	l, err := volume.Check(lbl)
	if err != nil {
		return nil, err
	}
	m, err := volume.Check(msk)
	if err != nil {
		return nil, err
	}
	if !l.SameShape(m) {
		return nil, fmt.Errorf("label %v and mask %v differ: %w", lbl.Shape, msk.Shape, volume.ErrShape)
	}
	channels := make([]*volume.Volume, l.Channels())
	for c := range channels {
		lc, err := l.Channel(c)
		if err != nil {
			return nil, err
		}
		mc, err := m.Channel(c)
		if err != nil {
			return nil, err
		}
		if channels[c], _, err = Binary(lc, mc, baseW); err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
	}
	return volume.Stack(channels...)
}

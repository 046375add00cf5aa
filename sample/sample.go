/*
	Package sample implements the named bundle of volumes that makes up one
	training example.  For a data key K, the optional companion key K_mask holds a
	same-shape validity mask; an absent mask means every voxel is valid.

	A Sample is not safe for concurrent use.  Each worker should build its own.
*/
package sample

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/twinj/uuid"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/volume"
)

// ErrMissingKey is returned when a sample lacks a required key.
var ErrMissingKey = errors.New("missing sample key")

// MaskSuffix is appended to a data key to name its companion mask.
const MaskSuffix = "_mask"

// MaskKey returns the companion mask key for a data key.
func MaskKey(key string) string {
	return key + MaskSuffix
}

// IsMaskKey returns true if the key names a companion mask.
func IsMaskKey(key string) bool {
	return strings.HasSuffix(key, MaskSuffix)
}

// Sample is a keyed set of volumes.
type Sample struct {
	ID   string
	vols map[string]*volume.Volume
}

// New returns an empty sample.  If id is empty, a random UUID is assigned.
func New(id string) *Sample {
	if id == "" {
		id = uuid.NewV4().String()
	}
	return &Sample{ID: id, vols: make(map[string]*volume.Volume)}
}

func (s *Sample) String() string {
	parts := make([]string, 0, len(s.vols))
	for _, k := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s%v", k, s.vols[k].Shape))
	}
	return fmt.Sprintf("sample %s {%s}", s.ID, strings.Join(parts, ", "))
}

// Len returns the number of entries, masks included.
func (s *Sample) Len() int {
	return len(s.vols)
}

// Keys returns all keys in sorted order.
func (s *Sample) Keys() []string {
	keys := make([]string, 0, len(s.vols))
	for k := range s.vols {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has returns true if the key is present.
func (s *Sample) Has(key string) bool {
	_, found := s.vols[key]
	return found
}

// Get returns the volume stored under key.
func (s *Sample) Get(key string) (*volume.Volume, bool) {
	v, found := s.vols[key]
	return v, found
}

// Set stores a single 3-D or 4-D volume.  The write is refused with ErrShape if
// a companion data or mask entry exists with a different (c,z,y,x) shape, where a
// 3-D volume counts as a single channel.
func (s *Sample) Set(key string, v *volume.Volume) error {
	pv, err := volume.Check(v)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	companion := MaskKey(key)
	if IsMaskKey(key) {
		companion = strings.TrimSuffix(key, MaskSuffix)
	}
	if c, found := s.vols[companion]; found {
		pc, err := volume.Check(c)
		if err != nil || !pv.SameShape(pc) {
			return fmt.Errorf("%q %v incompatible with %q %v: %w", key, v.Shape, companion, c.Shape, volume.ErrShape)
		}
	}
	s.vols[key] = v
	return nil
}

// Delete removes a key if present.
func (s *Sample) Delete(key string) {
	delete(s.vols, key)
}

// Extract returns the volume under key with its mask, defaulting to all ones
// when no companion mask is stored.
func (s *Sample) Extract(key string) (vol, msk *volume.Volume, err error) {
	vol, found := s.vols[key]
	if !found {
		return nil, nil, fmt.Errorf("sample %s has no %q: %w", s.ID, key, ErrMissingKey)
	}
	if msk, found = s.vols[MaskKey(key)]; !found {
		msk = volume.Filled(1, vol.Shape...)
	}
	return vol, msk, nil
}

// Store writes a label and its mask under key and MaskKey(key), replacing any
// previous pair.  Nothing is written if the shapes differ.
func (s *Sample) Store(key string, lbl, msk *volume.Volume) error {
	if lbl == nil || msk == nil || !lbl.SameShape(msk) {
		return fmt.Errorf("label and mask for %q must share a shape: %w", key, volume.ErrShape)
	}
	s.vols[key] = lbl
	s.vols[MaskKey(key)] = msk
	return nil
}

// Commit replaces a set of entries at once.
func (s *Sample) Commit(entries map[string]*volume.Volume) {
	for k, v := range entries {
		s.vols[k] = v
	}
}

// Entries returns a copy of the key to volume mapping.  The volumes themselves
// are shared.
func (s *Sample) Entries() map[string]*volume.Volume {
	entries := make(map[string]*volume.Volume, len(s.vols))
	for k, v := range s.vols {
		entries[k] = v
	}
	return entries
}

// Clone returns a sample with the same ID sharing the immutable volumes.
func (s *Sample) Clone() *Sample {
	return &Sample{ID: s.ID, vols: s.Entries()}
}

// MemSize returns a human-readable estimate of the sample's memory use.
func (s *Sample) MemSize() string {
	return dvid.MemSize(s.vols)
}

package sample

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/tinylib/msgp/msgp"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/volume"
)

// ContentType is the HTTP content type of an encoded sample.
const ContentType = "application/x-msgpack"

// Codec reads and writes samples as msgpack maps:
//
//	{format: "<semver>", id: "<id>", volumes: {key: {shape: [...], data: <bin>}}}
//
// where data holds little-endian float64 values serialized with the codec's
// compression and a CRC32 checksum.
type Codec struct {
	Compression dvid.Compression
}

// Encode writes a sample to w.
func (c Codec) Encode(w io.Writer, s *Sample) error {
	mw := msgp.NewWriter(w)
	if err := c.encodeMsg(mw, s); err != nil {
		return err
	}
	return mw.Flush()
}

// Marshal returns the encoded sample.
func (c Codec) Marshal(s *Sample) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Codec) encodeMsg(w *msgp.Writer, s *Sample) (err error) {
	if err = w.WriteMapHeader(3); err != nil {
		return
	}
	if err = w.WriteString("format"); err != nil {
		return
	}
	if err = w.WriteString(dvid.FormatVersion.String()); err != nil {
		return
	}
	if err = w.WriteString("id"); err != nil {
		return
	}
	if err = w.WriteString(s.ID); err != nil {
		return
	}
	if err = w.WriteString("volumes"); err != nil {
		return
	}
	keys := s.Keys()
	if err = w.WriteMapHeader(uint32(len(keys))); err != nil {
		return
	}
	for _, k := range keys {
		if err = w.WriteString(k); err != nil {
			return
		}
		if err = c.encodeVolume(w, s.vols[k]); err != nil {
			return fmt.Errorf("encoding %q: %v", k, err)
		}
	}
	return nil
}

func (c Codec) encodeVolume(w *msgp.Writer, v *volume.Volume) (err error) {
	if err = w.WriteMapHeader(2); err != nil {
		return
	}
	if err = w.WriteString("shape"); err != nil {
		return
	}
	if err = w.WriteArrayHeader(uint32(len(v.Shape))); err != nil {
		return
	}
	for _, s := range v.Shape {
		if err = w.WriteInt(s); err != nil {
			return
		}
	}
	if err = w.WriteString("data"); err != nil {
		return
	}
	raw := make([]byte, 8*len(v.Data))
	for i, f := range v.Data {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(f))
	}
	payload, err := dvid.SerializeData(raw, c.Compression, dvid.CRC32)
	if err != nil {
		return err
	}
	return w.WriteBytes(payload)
}

// Decode reads a sample from r.  The compression of each volume is read from
// its payload, so any Codec can decode any encoded sample.
func (c Codec) Decode(r io.Reader) (*Sample, error) {
	return c.decodeMsg(msgp.NewReader(bufio.NewReader(r)))
}

// Unmarshal decodes a sample from bytes.
func (c Codec) Unmarshal(b []byte) (*Sample, error) {
	return c.Decode(bytes.NewReader(b))
}

func (c Codec) decodeMsg(r *msgp.Reader) (*Sample, error) {
	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	s := &Sample{vols: make(map[string]*volume.Volume)}
	var sawFormat bool
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		switch field {
		case "format":
			format, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			if err := dvid.CompatibleFormat(format); err != nil {
				return nil, err
			}
			sawFormat = true
		case "id":
			if s.ID, err = r.ReadString(); err != nil {
				return nil, err
			}
		case "volumes":
			nvols, err := r.ReadMapHeader()
			if err != nil {
				return nil, err
			}
			for j := uint32(0); j < nvols; j++ {
				key, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				v, err := decodeVolume(r)
				if err != nil {
					return nil, fmt.Errorf("decoding %q: %w", key, err)
				}
				if err := s.Set(key, v); err != nil {
					return nil, err
				}
			}
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	if !sawFormat {
		return nil, fmt.Errorf("encoded sample has no format version")
	}
	if s.ID == "" {
		s.ID = New("").ID
	}
	return s, nil
}

func decodeVolume(r *msgp.Reader) (*volume.Volume, error) {
	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	var shape []int
	var data []float64
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		switch field {
		case "shape":
			rank, err := r.ReadArrayHeader()
			if err != nil {
				return nil, err
			}
			if rank != 3 && rank != 4 {
				return nil, fmt.Errorf("volume of rank %d is not 3-D or 4-D: %w", rank, volume.ErrShape)
			}
			shape = make([]int, rank)
			for d := range shape {
				if shape[d], err = r.ReadInt(); err != nil {
					return nil, err
				}
			}
		case "data":
			payload, err := r.ReadBytes(nil)
			if err != nil {
				return nil, err
			}
			raw, _, err := dvid.DeserializeData(payload)
			if err != nil {
				return nil, err
			}
			if len(raw)%8 != 0 {
				return nil, fmt.Errorf("volume payload of %d bytes is not float64 data", len(raw))
			}
			data = make([]float64, len(raw)/8)
			for j := range data {
				data[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[j*8:]))
			}
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return volume.FromData(shape, data)
}

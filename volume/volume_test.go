package volume

import (
	"errors"
	"testing"
)

// ramp returns a volume whose voxel values equal their data index.
func ramp(shape ...int) *Volume {
	v := New(shape...)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}
	return v
}

func TestCheck(t *testing.T) {
	v := ramp(2, 3, 4)
	cv, err := Check(v)
	if err != nil {
		t.Fatalf("check of 3-D volume: %v\n", err)
	}
	if cv.Rank() != 4 || cv.Channels() != 1 {
		t.Errorf("expected (1,2,3,4), got %v\n", cv.Shape)
	}
	if cv.At(0, 1, 2, 3) != 23 {
		t.Errorf("expected value 23 at (0,1,2,3), got %f\n", cv.At(0, 1, 2, 3))
	}
	if _, err := Check(ramp(4, 4)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for 2-D volume, got %v\n", err)
	}
	if _, err := Check(nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for nil volume, got %v\n", err)
	}
}

func TestFromData(t *testing.T) {
	if _, err := FromData([]int{2, 2, 2}, make([]float64, 7)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for short data, got %v\n", err)
	}
	if _, err := FromData([]int{0, 2, 2}, nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for zero extent, got %v\n", err)
	}
	if _, err := FromData([]int{1 << 32, 1 << 32, 1}, nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for shape whose voxel count overflows, got %v\n", err)
	}
	if _, err := FromData([]int{1 << 21, 1 << 21, 1 << 21, 2}, nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for 4-D shape whose voxel count overflows, got %v\n", err)
	}
	v, err := FromData([]int{1, 2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromData: %v\n", err)
	}
	if v.Sum() != 10 {
		t.Errorf("expected sum 10, got %f\n", v.Sum())
	}
}

func TestStackAndChannel(t *testing.T) {
	a := Filled(1, 2, 2, 2)
	b := Filled(2, 1, 2, 2, 2)
	s, err := Stack(a, b)
	if err != nil {
		t.Fatalf("stack: %v\n", err)
	}
	if s.Channels() != 2 || s.Len() != 16 {
		t.Fatalf("expected (2,2,2,2), got %v\n", s.Shape)
	}
	c1, err := s.Channel(1)
	if err != nil {
		t.Fatalf("channel: %v\n", err)
	}
	if c1.Sum() != 16 {
		t.Errorf("expected channel 1 sum 16, got %f\n", c1.Sum())
	}
	if _, err := s.Channel(2); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for channel 2, got %v\n", err)
	}
	if _, err := Stack(a, Filled(1, 2, 2, 3)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape stacking mismatched volumes, got %v\n", err)
	}
}

func TestMulBroadcast(t *testing.T) {
	a := Filled(2, 3, 2, 2, 2)
	b := New(1, 2, 2, 2)
	b.Data[0] = 1
	b.Data[7] = 0.5
	out, err := Mul(a, b)
	if err != nil {
		t.Fatalf("mul: %v\n", err)
	}
	if out.Sum() != 3*(2+1) {
		t.Errorf("expected broadcast sum 9, got %f\n", out.Sum())
	}
	if _, err := Mul(a, New(2, 2, 2, 2)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape multiplying 3 channels by 2, got %v\n", err)
	}
}

func TestCrop(t *testing.T) {
	v := ramp(2, 4, 4, 4)
	out, err := Crop(v, Offset{1, 1, 1}, [3]int{2, 2, 2})
	if err != nil {
		t.Fatalf("crop: %v\n", err)
	}
	if !out.SameShape(New(2, 2, 2, 2)) {
		t.Fatalf("expected (2,2,2,2), got %v\n", out.Shape)
	}
	for c := 0; c < 2; c++ {
		for z := 0; z < 2; z++ {
			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					if got, want := out.At(c, z, y, x), v.At(c, z+1, y+1, x+1); got != want {
						t.Errorf("crop (%d,%d,%d,%d) = %f, expected %f\n", c, z, y, x, got, want)
					}
				}
			}
		}
	}

	out3, err := Crop(ramp(4, 4, 4), Offset{0, 0, 0}, [3]int{4, 4, 1})
	if err != nil {
		t.Fatalf("crop 3-D: %v\n", err)
	}
	if out3.Rank() != 3 || out3.Len() != 16 {
		t.Errorf("expected 3-D (4,4,1) crop, got %v\n", out3.Shape)
	}

	bad := []struct {
		offset Offset
		size   [3]int
	}{
		{Offset{3, 0, 0}, [3]int{2, 2, 2}},
		{Offset{-1, 0, 0}, [3]int{2, 2, 2}},
		{Offset{0, 0, 0}, [3]int{0, 2, 2}},
		{Offset{0, 0, 0}, [3]int{4, 4, 5}},
	}
	for _, tc := range bad {
		if _, err := Crop(v, tc.offset, tc.size); !errors.Is(err, ErrShape) {
			t.Errorf("expected ErrShape for crop %v size %v, got %v\n", tc.offset, tc.size, err)
		}
	}
}

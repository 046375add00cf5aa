package dvid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
	Tera = 1 << 40
)

// MemSize returns a human-readable estimate of the in-memory footprint of a value.
func MemSize(v interface{}) string {
	n := size.Of(v)
	if n < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(n))
}

// ElapsedTime logs at Info level the time elapsed from the start time with Printf
// arguments afterwards.
// Example:  ElapsedTime(startTime, "Generated %d samples", n)
func ElapsedTime(startTime time.Time, format string, args ...interface{}) {
	Infof(format+": %s\n", append(args, time.Since(startTime))...)
}

// WriteJSONFile writes an arbitrary but exportable Go object to a JSON file.
func WriteJSONFile(filename string, value interface{}) error {
	m, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error in writing JSON file: %s [%v]", filename, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, m, "", "    "); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to create JSON file: %s [%v]", filename, err)
	}
	return nil
}

// ConvertToAbsolute returns an absolute path for a path given relative to a
// base directory.  Absolute paths are returned unchanged.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}

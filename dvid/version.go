package dvid

import (
	"fmt"

	"github.com/blang/semver"
)

// Version is the version of the trainlabels software.
const Version = "0.3.1"

// FormatVersion is the version of the encoded sample format.  A decoder accepts
// any payload with the same major version.
var FormatVersion = semver.MustParse("1.1.0")

// CompatibleFormat returns an error if a stored format version can't be read by
// this build.
func CompatibleFormat(stored string) error {
	v, err := semver.Parse(stored)
	if err != nil {
		return fmt.Errorf("bad sample format version %q: %v", stored, err)
	}
	if v.Major != FormatVersion.Major {
		return fmt.Errorf("sample format %s incompatible with supported format %s", v, FormatVersion)
	}
	return nil
}

// Versions returns a human-readable description of software and format versions.
func Versions() string {
	return fmt.Sprintf("trainlabels %s (sample format %s)", Version, FormatVersion)
}

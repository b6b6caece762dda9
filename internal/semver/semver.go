// Package semver holds the release version of the binaries.
package semver

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var re = regexp.MustCompile(`^v(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

var ErrParse = errors.New("could not parse provided string into semantic version")

// version is overridden at build time:
//
//	go build -ldflags "-X github.com/SpatiumPortae/trickle/internal/semver.version=v1.2.3"
var version = "v0.1.0"

type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Parse parses the provided string into a semver representation.
func Parse(s string) (Version, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return Version{}, ErrParse
	}
	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, errors.Wrapf(ErrParse, "component %q", m[i+1])
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// Current returns the version the binary was built with. A malformed build
// version yields v0.0.0.
func Current() Version {
	v, err := Parse(version)
	if err != nil {
		return Version{}
	}
	return v
}

// String returns a string representation of the semver.
func (sv Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", sv.Major, sv.Minor, sv.Patch)
}

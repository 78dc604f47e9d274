// Package version describes the current build.
package version

import "fmt"

const (
	Major = 1
	Minor = 2
	Patch = 0
)

// GitRevision is set at build time with
// -ldflags="-X 'epistolary-lite/internal/version.GitRevision=$(git rev-parse --short HEAD)'"
var GitRevision string

// Version returns the semantic version, with the git revision appended when known.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if GitRevision != "" {
		v = fmt.Sprintf("%s (%s)", v, GitRevision)
	}
	return v
}

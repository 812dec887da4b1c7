package treasury

import "fmt"

// Maj is the major version number (updated on breaking release)
const Maj = 0

// Min is the minor version number (updated on minor releases)
const Min = 1

// Fix is the patch number (updated on bugfix releases)
const Fix = 0

// Suffix used when not a tagged release (eg. -dev, -alpha, -beta, etc)
const Suffix = "-dev"

var version = fmt.Sprintf("v%d.%d.%d%s", Maj, Min, Fix, Suffix)

// GitCommit is set with -ldflags at build time.
var GitCommit = ""

// Version returns the release version, followed by the commit hash when
// known.
func Version() string {
	if GitCommit == "" {
		return version
	}
	return version + " " + GitCommit
}

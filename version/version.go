// Package version exists solely so that we can store the version of this application
// in one location, despite needing it in two places within the application.
//
// The main.go driver-package prints it for the --version flag, and GetVersionString
// returns the bare tag for any other caller.
//
// Duplicating the version number/tag in two places is a recipe for drift and confusion,
// so this internal-package is the result.
package version

import "fmt"

var (
	// version is populated with our release tag, via a Github Action.
	//
	// See .github/build in the source distribution for details.
	version = "unreleased"
)

// GetVersionBanner returns a banner which is suitable for printing, to show our name,
// version, and homepage link.
func GetVersionBanner() string {

	str := fmt.Sprintf("cpmemu %s\n%s\n", version, "https://github.com/qkcoder/cpmemu/")
	return str
}

// GetVersionString returns our version number as a string.
func GetVersionString() string {
	return version
}

// Package misc keeps program identity which is set at build time.
package misc

import (
	"os"
	"path/filepath"
	"strings"
)

// Overwritten with -ldflags "-X schemac/misc.version=... -X schemac/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "schemac"

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git commit the program was built from.
func GetGitHash() string {
	return gitHash
}

// GetAppName returns program name, normally name of the executable without
// extension.
func GetAppName() string {
	if len(os.Args) > 0 {
		if name := strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0])); len(name) > 0 && !strings.HasSuffix(name, ".test") {
			return name
		}
	}
	return appName
}

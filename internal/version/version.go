package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get reports the build version from the embedded VERSION file, falling
// back to "dev" when the file is empty.
func Get() string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return "dev"
}

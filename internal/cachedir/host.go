package cachedir

import (
	"os"

	"github.com/bamsammich/sepack/internal/platform"
)

// HostEnv describes the running process.
func HostEnv() Env {
	home, _ := os.UserHomeDir()
	return Env{
		Lookup:   os.LookupEnv,
		Platform: platform.Current().Platform,
		Home:     home,
	}
}

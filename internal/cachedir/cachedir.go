// Package cachedir resolves where extracted binaries live:
//
//	<root>/<appName>/<appVersion>-<platform>-<arch>/<fileName>
//
// The root comes from SEPACK_CACHE_DIR, then the manifest's cacheLocation
// (after placeholder expansion), then the platform's user-local cache
// directory.
package cachedir

import (
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/bamsammich/sepack/internal/manifest"
)

// EnvOverride names the environment variable that overrides every other
// cache root source.
const EnvOverride = "SEPACK_CACHE_DIR"

// ErrNoRoot is returned when no cache root can be determined.
var ErrNoRoot = errors.New("cannot determine cache directory")

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// Env describes the host the cache is resolved for.
type Env struct {
	Lookup   LookupFunc
	Platform string // "win32", "darwin", "linux", ...
	Home     string
}

var placeholder = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%|\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Expand replaces %VAR%, ${VAR} and $VAR with values from lookup. Unknown
// variables are left verbatim.
func Expand(s string, lookup LookupFunc) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		name := sub[1] + sub[2] + sub[3]
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})
}

// Root resolves the cache root for m on env.
func Root(m *manifest.Manifest, env Env) (string, error) {
	if v, ok := env.Lookup(EnvOverride); ok && v != "" {
		return clean(v, env.Platform), nil
	}
	if m != nil && m.CacheLocation != "" {
		return clean(Expand(m.CacheLocation, env.Lookup), env.Platform), nil
	}
	return defaultRoot(env)
}

func defaultRoot(env Env) (string, error) {
	get := func(name string) string {
		v, _ := env.Lookup(name)
		return v
	}
	switch env.Platform {
	case "win32":
		if v := get("LOCALAPPDATA"); v != "" {
			return clean(v, env.Platform), nil
		}
		if env.Home != "" {
			return join(env.Platform, env.Home, "AppData", "Local"), nil
		}
	case "darwin":
		if env.Home != "" {
			return join(env.Platform, env.Home, "Library", "Caches"), nil
		}
	default:
		if v := get("XDG_CACHE_HOME"); v != "" && strings.HasPrefix(v, "/") {
			return clean(v, env.Platform), nil
		}
		if env.Home != "" {
			return join(env.Platform, env.Home, ".cache"), nil
		}
	}
	return "", ErrNoRoot
}

// Dir returns the versioned extraction directory for m under root.
func Dir(root string, m *manifest.Manifest, platform string) string {
	return join(platform, root, m.AppName, m.AppVersion+"-"+m.Platform+"-"+m.Arch)
}

// File returns the extraction path of fileName inside dir.
func File(dir, fileName, platform string) string {
	return join(platform, dir, fileName)
}

// join uses the path style of platform so Windows paths resolve the same
// way regardless of the host running the code.
func join(platform string, elem ...string) string {
	if platform != "win32" {
		return path.Join(elem...)
	}
	unc := false
	if i := firstNonEmpty(elem); i >= 0 {
		unc = strings.HasPrefix(elem[i], `\\`) || strings.HasPrefix(elem[i], "//")
	}
	for i, e := range elem {
		elem[i] = strings.ReplaceAll(e, `\`, "/")
	}
	joined := strings.ReplaceAll(path.Join(elem...), "/", `\`)
	if unc {
		// path.Join collapses the leading "//" of \\server\share.
		joined = `\` + joined
	}
	return joined
}

func firstNonEmpty(elem []string) int {
	for i, e := range elem {
		if e != "" {
			return i
		}
	}
	return -1
}

func clean(p, platform string) string {
	return join(platform, p)
}

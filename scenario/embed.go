package scenario

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed scripts/*.tengo
var ScriptsFS embed.FS

const scriptExt = ".tengo"

// LoadScript returns the named script, preferring a copy in dir on disk over
// the embedded one.
func LoadScript(dir, name string) ([]byte, error) {
	clean := cleanScriptName(name)
	if dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, clean)); err == nil {
			return data, nil
		}
	}
	return ScriptsFS.ReadFile(path.Join("scripts", clean))
}

// ScriptPath returns where LoadScript looks for name on disk.
func ScriptPath(dir, name string) string {
	return filepath.Join(dir, cleanScriptName(name))
}

// Names returns the embedded scenarios without their extension.
func Names() []string {
	entries, err := fs.ReadDir(ScriptsFS, "scripts")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), scriptExt); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func cleanScriptName(name string) string {
	s := filepath.ToSlash(strings.TrimSpace(name))
	if after, ok := strings.CutPrefix(s, "scenario/"); ok {
		s = after
	}
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	s = path.Base(s)
	if !strings.HasSuffix(s, scriptExt) {
		s += scriptExt
	}
	return s
}

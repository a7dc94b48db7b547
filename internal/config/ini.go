package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// IsINI reports whether path names a legacy INI config file (.conf or .ini).
func IsINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".conf", ".ini":
		return true
	}
	return false
}

// ReadINI reads an INI file into a nested map keyed by section, suitable for
// viper.MergeConfigMap. Section and key names are lower-cased and values are
// kept as strings. Keys in the DEFAULT section apply to every section that
// does not set them.
func ReadINI(path string) (map[string]any, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// With Insensitive set, an explicit [DEFAULT] keeps its name next to the
	// implicit empty default section, so match both by name.
	defaults := map[string]string{}
	for _, s := range f.Sections() {
		if !strings.EqualFold(s.Name(), ini.DefaultSection) {
			continue
		}
		for _, k := range s.Keys() {
			defaults[strings.ToLower(k.Name())] = k.Value()
		}
	}

	out := make(map[string]any)
	for _, s := range f.Sections() {
		if strings.EqualFold(s.Name(), ini.DefaultSection) {
			continue
		}
		values := make(map[string]any, len(defaults)+len(s.Keys()))
		for k, v := range defaults {
			values[k] = v
		}
		for _, k := range s.Keys() {
			values[strings.ToLower(k.Name())] = k.Value()
		}
		out[strings.ToLower(s.Name())] = values
	}
	return out, nil
}

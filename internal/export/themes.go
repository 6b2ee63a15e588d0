package export

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// Themes holds named Settings presets loaded from a TOML file. Each preset
// starts from DefaultSettings, so a theme only has to name the keys it
// changes.
//
// File shape:
//
//	[themes.midnight.branding]
//	primary_color = "#0b1f3a"
//	accent_color  = "#f2a33c"
//
//	[themes.midnight.content]
//	methodology = true
type Themes struct {
	presets map[string]Settings
}

type themesFile struct {
	Themes map[string]toml.Primitive `toml:"themes"`
}

// LoadThemes parses a theme preset file. A missing or empty path yields an
// empty, usable Themes value.
func LoadThemes(path string) (*Themes, error) {
	t := &Themes{presets: map[string]Settings{}}
	if path == "" {
		return t, nil
	}

	var raw themesFile
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse themes file %s: %w", path, err)
	}

	for name, prim := range raw.Themes {
		s := DefaultSettings()
		if err := md.PrimitiveDecode(prim, &s); err != nil {
			return nil, fmt.Errorf("theme %q: %w", name, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("theme %q: %w", name, err)
		}
		t.presets[name] = s
	}
	return t, nil
}

// Resolve returns the preset for name, or DefaultSettings when name is empty
// or unknown. The second return reports whether a preset matched.
func (t *Themes) Resolve(name string) (Settings, bool) {
	if t != nil && name != "" {
		if s, ok := t.presets[name]; ok {
			return s.Clone(), true
		}
	}
	return DefaultSettings(), false
}

// Names lists the loaded preset names, sorted.
func (t *Themes) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.presets))
	for n := range t.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package config

import (
	"fmt"
	"sort"
	"strings"

	"musicforge/internal/settings"
)

// UserPreset overrides selected processing fields. Unset fields keep the
// value from the [processing] and [normalization] sections.
type UserPreset struct {
	Description string   `toml:"description"`
	Format      *string  `toml:"format"`
	Quality     *string  `toml:"quality"`
	BitDepth    *int     `toml:"bit_depth"`
	SampleRate  *int     `toml:"sample_rate"`
	Channels    *int     `toml:"channels"`
	FadeIn      *float64 `toml:"fade_in"`
	FadeOut     *float64 `toml:"fade_out"`
	Normalize   *bool    `toml:"normalize"`
	Mode        *string  `toml:"mode"`
	TargetLUFS  *float64 `toml:"target_lufs"`
	TruePeak    *float64 `toml:"true_peak"`
	LRA         *float64 `toml:"lra"`
}

func (p UserPreset) apply(s settings.Settings) settings.Settings {
	if p.Format != nil {
		s.Format = settings.Format(strings.ToLower(strings.TrimSpace(*p.Format)))
	}
	if p.Quality != nil {
		s.Quality = strings.TrimSpace(*p.Quality)
	}
	if p.BitDepth != nil {
		s.BitDepth = *p.BitDepth
	}
	if p.SampleRate != nil {
		s.SampleRate = *p.SampleRate
	}
	if p.Channels != nil {
		s.Channels = *p.Channels
	}
	if p.FadeIn != nil {
		s.FadeIn = *p.FadeIn
	}
	if p.FadeOut != nil {
		s.FadeOut = *p.FadeOut
	}
	if p.Normalize != nil {
		s.Normalization.Enabled = *p.Normalize
	}
	if p.Mode != nil {
		s.Normalization.Mode = settings.NormalizeMode(strings.ToLower(strings.TrimSpace(*p.Mode)))
	}
	if p.TargetLUFS != nil {
		s.Normalization.TargetLUFS = *p.TargetLUFS
	}
	if p.TruePeak != nil {
		s.Normalization.TruePeak = *p.TruePeak
	}
	if p.LRA != nil {
		s.Normalization.LRA = *p.LRA
	}
	return s
}

// PresetInfo describes a preset for listing.
type PresetInfo struct {
	Name        string
	Description string
	Builtin     bool
}

// ListPresets returns the built-in presets followed by user presets sorted
// by name. A user preset that shadows a built-in replaces it in place.
func (c *Config) ListPresets() []PresetInfo {
	var out []PresetInfo
	shadowed := map[string]bool{}
	for _, p := range settings.Presets() {
		info := PresetInfo{Name: p.Name, Description: p.Description, Builtin: true}
		if name, user, ok := c.userPreset(p.Name); ok {
			info = PresetInfo{Name: name, Description: user.Description}
			shadowed[strings.ToLower(name)] = true
		}
		out = append(out, info)
	}
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		if !shadowed[strings.ToLower(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, PresetInfo{Name: name, Description: c.Presets[name].Description})
	}
	return out
}

func (c *Config) userPreset(name string) (string, UserPreset, bool) {
	for key, preset := range c.Presets {
		if strings.EqualFold(strings.TrimSpace(key), strings.TrimSpace(name)) {
			return key, preset, true
		}
	}
	return "", UserPreset{}, false
}

func (c *Config) lookupPreset(name string) (func(settings.Settings) settings.Settings, bool) {
	if _, user, ok := c.userPreset(name); ok {
		return user.apply, true
	}
	if builtin, ok := settings.LookupPreset(name); ok {
		return builtin.Apply, true
	}
	return nil, false
}

// Settings builds batch settings from the processing sections, then applies
// the named preset. An empty name falls back to processing.preset. The result
// is not validated so callers can layer command-line overrides first.
func (c *Config) Settings(preset string) (settings.Settings, error) {
	s := settings.Settings{
		Format:     settings.Format(c.Processing.Format),
		Quality:    c.Processing.Quality,
		BitDepth:   c.Processing.BitDepth,
		SampleRate: c.Processing.SampleRate,
		Channels:   c.Processing.Channels,
		Normalization: settings.Normalization{
			Enabled:    c.Normalization.Enabled,
			Mode:       settings.NormalizeMode(c.Normalization.Mode),
			TargetLUFS: c.Normalization.TargetLUFS,
			TruePeak:   c.Normalization.TruePeak,
			LRA:        c.Normalization.LRA,
		},
		FadeIn:           c.Processing.FadeIn,
		FadeOut:          c.Processing.FadeOut,
		Overwrite:        c.Processing.Overwrite,
		AutoRename:       c.Processing.AutoRename,
		OutputDir:        c.Paths.OutputDir,
		Concurrency:      c.Processing.Concurrency,
		FilenameTemplate: c.Processing.FilenameTemplate,
		Metadata: settings.Metadata{
			Artist:  c.Metadata.Artist,
			Title:   c.Metadata.Title,
			Album:   c.Metadata.Album,
			Year:    c.Metadata.Year,
			Genre:   c.Metadata.Genre,
			Comment: c.Metadata.Comment,
		},
	}

	name := strings.TrimSpace(preset)
	if name == "" {
		name = c.Processing.Preset
	}
	if name == "" {
		return s, nil
	}
	apply, ok := c.lookupPreset(name)
	if !ok {
		return settings.Settings{}, fmt.Errorf("unknown preset %q", name)
	}
	return apply(s), nil
}

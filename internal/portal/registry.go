// Package portal holds the known portal variants as configuration presets.
package portal

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"

	"github.com/ppiankov/casecrawl/internal/model"
)

// Preset is a named portal variant
type Preset struct {
	Name        string
	Description string

	// build returns a fresh copy so overrides never touch the registered preset
	build func() model.PortalConfig
}

// Config returns a copy of the preset's configuration
func (p Preset) Config() model.PortalConfig {
	cfg := p.build()
	cfg.Name = p.Name
	return cfg
}

// Registry manages portal presets
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates a registry with the built-in presets
func NewRegistry() *Registry {
	registry := &Registry{
		presets: make(map[string]Preset),
	}

	registry.Register(Preset{Name: "jeecg", Description: "JeecgBoot task list (JSON login, data-URI captcha)", build: jeecgPreset})
	registry.Register(Preset{Name: "gouguoa", Description: "Gouguoa official documents (JSON login, image captcha)", build: gouguoaPreset})
	registry.Register(Preset{Name: "zmjg", Description: "ZMJG case management (form login, HTML case tables)", build: zmjgPreset})

	return registry
}

// Register registers a preset, replacing any with the same name
func (r *Registry) Register(p Preset) {
	r.presets[p.Name] = p
}

// Find returns the preset with the given name
func (r *Registry) Find(name string) (Preset, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// Presets returns all presets sorted by name
func (r *Registry) Presets() []Preset {
	out := make([]Preset, 0, len(r.presets))
	for _, p := range r.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve merges override onto the named preset. Non-zero override fields win.
func (r *Registry) Resolve(name string, override model.PortalConfig) (model.PortalConfig, error) {
	preset, ok := r.Find(name)
	if !ok {
		names := make([]string, 0, len(r.presets))
		for _, p := range r.Presets() {
			names = append(names, p.Name)
		}
		return model.PortalConfig{}, fmt.Errorf("unknown portal %q (known: %s)", name, strings.Join(names, ", "))
	}

	out := preset.Config()
	override.Name = ""
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return model.PortalConfig{}, fmt.Errorf("merge portal overrides: %w", err)
	}

	if err := Validate(out); err != nil {
		return model.PortalConfig{}, err
	}
	return out, nil
}

// Validate checks that a portal configuration is complete enough to run
func Validate(cfg model.PortalConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("portal %s: base_url is required", cfg.Name)
	}
	switch cfg.List.Kind {
	case model.ListJSON:
		if cfg.List.URL == "" {
			return fmt.Errorf("portal %s: list.url is required", cfg.Name)
		}
	case model.ListHTML:
		if len(cfg.List.ExpectedHeaders) == 0 {
			return fmt.Errorf("portal %s: list.expected_headers is required", cfg.Name)
		}
		if cfg.List.URL == "" && cfg.List.DiscoverLinkText == "" {
			return fmt.Errorf("portal %s: list.url or list.discover_link_text is required", cfg.Name)
		}
	default:
		return fmt.Errorf("portal %s: unknown list kind %q", cfg.Name, cfg.List.Kind)
	}
	return nil
}

// Headers returns the portal's default headers with {base} expanded
func Headers(cfg model.PortalConfig) map[string]string {
	out := make(map[string]string, len(cfg.Headers))
	base := strings.TrimRight(cfg.BaseURL, "/")
	for k, v := range cfg.Headers {
		out[k] = strings.ReplaceAll(v, "{base}", base)
	}
	return out
}

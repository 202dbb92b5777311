package portal

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

func TestRegistry_BuiltinPresets(t *testing.T) {
	r := NewRegistry()

	var names []string
	for _, p := range r.Presets() {
		names = append(names, p.Name)
		if err := Validate(p.Config()); err != nil {
			t.Errorf("preset %s is invalid: %v", p.Name, err)
		}
	}
	if diff := cmp.Diff([]string{"gouguoa", "jeecg", "zmjg"}, names); diff != "" {
		t.Errorf("preset names mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_ResolveOverrides(t *testing.T) {
	r := NewRegistry()

	override := model.PortalConfig{
		BaseURL: "http://10.0.0.5:8080",
		Headers: map[string]string{"X-Forwarded-For": "10.0.0.1"},
		List: model.ListConfig{
			ExpectedHeaders: []string{"编号", "单位", "部门"},
		},
	}
	cfg, err := r.Resolve("zmjg", override)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "zmjg" {
		t.Errorf("expected preset name, got %q", cfg.Name)
	}
	if cfg.BaseURL != "http://10.0.0.5:8080" {
		t.Errorf("base url not overridden: %s", cfg.BaseURL)
	}
	if diff := cmp.Diff([]string{"编号", "单位", "部门"}, cfg.List.ExpectedHeaders); diff != "" {
		t.Errorf("expected headers should be replaced (-want +got):\n%s", diff)
	}
	if cfg.List.IDColumn != "案件编号" {
		t.Errorf("untouched fields should keep preset values, got %q", cfg.List.IDColumn)
	}
	if cfg.Login.Success.Kind != model.SuccessHTMLMarkers {
		t.Errorf("login contract should survive the merge")
	}

	again, _ := r.Find("zmjg")
	if again.Config().BaseURL != "http://zmjg.zm.sc.yc" {
		t.Error("resolve must not mutate the registered preset")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	if _, err := NewRegistry().Resolve("nope", model.PortalConfig{}); err == nil {
		t.Error("expected error for unknown portal")
	}
}

func TestValidate(t *testing.T) {
	cfg := zmjgPreset()
	cfg.List.Kind = "xml"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown list kind")
	}

	cfg = jeecgPreset()
	cfg.BaseURL = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for missing base url")
	}
}

func TestHeaders(t *testing.T) {
	cfg := gouguoaPreset()
	cfg.BaseURL = "http://oa.local/"
	if got := Headers(cfg)["Referer"]; got != "http://oa.local/login" {
		t.Errorf("unexpected referer %q", got)
	}
}

func TestBuilders(t *testing.T) {
	s, err := session.New(model.HTTPConfig{})
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range NewRegistry().Presets() {
		cfg := p.Config()
		if _, err := NewAuthFlow(s, cfg); err != nil {
			t.Errorf("%s: auth flow: %v", p.Name, err)
		}
		if _, err := NewLister(s, cfg); err != nil {
			t.Errorf("%s: lister: %v", p.Name, err)
		}
		if _, err := NewExtractor(cfg); err != nil {
			t.Errorf("%s: extractor: %v", p.Name, err)
		}
	}

	bad := zmjgPreset()
	bad.Sections.Rules = []model.SectionRule{{Label: "x", Pattern: "("}}
	if _, err := NewExtractor(bad); err == nil {
		t.Error("expected error for invalid section pattern")
	}
}

package portal

import (
	"fmt"

	"github.com/ppiankov/casecrawl/internal/auth"
	"github.com/ppiankov/casecrawl/internal/extract"
	"github.com/ppiankov/casecrawl/internal/listing"
	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

// NewAuthFlow builds the login flow of a portal
func NewAuthFlow(s *session.Session, cfg model.PortalConfig) (*auth.Flow, error) {
	return auth.NewFlow(s, cfg.BaseURL, cfg.Login)
}

// NewLister builds the list enumerator of a portal
func NewLister(s *session.Session, cfg model.PortalConfig) (listing.Lister, error) {
	switch cfg.List.Kind {
	case model.ListJSON:
		return listing.NewJSONPaginator(s, cfg.BaseURL, cfg.List), nil
	case model.ListHTML:
		return listing.NewHTMLLister(s, cfg.BaseURL, cfg.List), nil
	default:
		return nil, fmt.Errorf("unknown list kind %q", cfg.List.Kind)
	}
}

// NewExtractor builds the section extractor of a portal
func NewExtractor(cfg model.PortalConfig) (*extract.Extractor, error) {
	if len(cfg.Sections.Rules) == 0 {
		return extract.New(extract.LiteralRules(extract.DefaultVocabulary), cfg.Sections.FallbackLabel), nil
	}
	rules, err := extract.NewRules(cfg.Sections.Rules)
	if err != nil {
		return nil, err
	}
	return extract.New(rules, cfg.Sections.FallbackLabel), nil
}

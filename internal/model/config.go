package model

import "time"

// Config is the complete casecrawl configuration
type Config struct {
	HTTP   HTTPConfig   `yaml:"http" mapstructure:"http"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Portal PortalConfig `yaml:"portal" mapstructure:"portal"`
}

// HTTPConfig controls the transport session
type HTTPConfig struct {
	Timeout           time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string            `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage    string            `yaml:"accept_language" mapstructure:"accept_language"`
	Headers           map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
	MaxRedirects      int               `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxBodyBytes      int64             `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64           `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables pacing
	InsecureTLS       bool              `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy         string            `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string            `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CrawlConfig controls the orchestrator and the on-disk layout
type CrawlConfig struct {
	OutputDir      string        `yaml:"output_dir" mapstructure:"output_dir"`
	CheckpointFile string        `yaml:"checkpoint_file" mapstructure:"checkpoint_file"`
	ReportFile     string        `yaml:"report_file" mapstructure:"report_file"`
	Resume         bool          `yaml:"resume" mapstructure:"resume"`
	ItemDelay      time.Duration `yaml:"item_delay" mapstructure:"item_delay"`
	RespectRobots  bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the detail document cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"` // empty keeps the cache in memory only
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	Color bool   `yaml:"color" mapstructure:"color"`
}

// PortalConfig describes one portal variant. Presets fill it; the config file overrides it.
type PortalConfig struct {
	Name     string            `yaml:"name" mapstructure:"name"`
	BaseURL  string            `yaml:"base_url" mapstructure:"base_url"`
	Headers  map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
	Login    LoginConfig       `yaml:"login" mapstructure:"login"`
	List     ListConfig        `yaml:"list" mapstructure:"list"`
	Sections SectionsConfig    `yaml:"sections" mapstructure:"sections"`
}

// LoginConfig describes the login exchange
type LoginConfig struct {
	PageURL       string            `yaml:"page_url" mapstructure:"page_url"`
	SubmitURL     string            `yaml:"submit_url,omitempty" mapstructure:"submit_url"`
	Encoding      string            `yaml:"encoding" mapstructure:"encoding"` // json or form
	DiscoverForm  bool              `yaml:"discover_form" mapstructure:"discover_form"`
	UsernameField string            `yaml:"username_field" mapstructure:"username_field"`
	PasswordField string            `yaml:"password_field" mapstructure:"password_field"`
	CodeField     string            `yaml:"code_field,omitempty" mapstructure:"code_field"`
	KeyField      string            `yaml:"key_field,omitempty" mapstructure:"key_field"`
	ExtraFields   map[string]string `yaml:"extra_fields,omitempty" mapstructure:"extra_fields"`
	Challenge     ChallengeConfig   `yaml:"challenge" mapstructure:"challenge"`
	Success       SuccessConfig     `yaml:"success" mapstructure:"success"`
}

// Challenge key styles
const (
	KeyTimestampRandom = "timestamp-random"
	KeyTimestamp       = "timestamp"
)

// Challenge payload formats
const (
	ChallengeImage = "image"
	ChallengeJSON  = "json"
)

// ChallengeConfig describes the captcha resource
type ChallengeConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	URL       string `yaml:"url,omitempty" mapstructure:"url"` // template: {base}, {key}, {t}
	KeyStyle  string `yaml:"key_style,omitempty" mapstructure:"key_style"`
	Format    string `yaml:"format,omitempty" mapstructure:"format"`
	ImagePath string `yaml:"image_path,omitempty" mapstructure:"image_path"` // gjson path of the data URI
}

// Login success discriminators
const (
	SuccessJSONFlag    = "json-flag"
	SuccessJSONEquals  = "json-equals"
	SuccessHTMLMarkers = "html-markers"
)

// SuccessConfig is the explicit per-portal login success contract
type SuccessConfig struct {
	Kind           string   `yaml:"kind" mapstructure:"kind"`
	Path           string   `yaml:"path,omitempty" mapstructure:"path"`
	Equals         string   `yaml:"equals,omitempty" mapstructure:"equals"`
	MessagePath    string   `yaml:"message_path,omitempty" mapstructure:"message_path"`
	TokenPath      string   `yaml:"token_path,omitempty" mapstructure:"token_path"`
	TokenHeader    string   `yaml:"token_header,omitempty" mapstructure:"token_header"`
	SuccessMarkers []string `yaml:"success_markers,omitempty" mapstructure:"success_markers"`
	FailureMarkers []string `yaml:"failure_markers,omitempty" mapstructure:"failure_markers"`
	LoginMarkers   []string `yaml:"login_markers,omitempty" mapstructure:"login_markers"` // absence of all of them counts as success
}

// List kinds
const (
	ListJSON = "json"
	ListHTML = "html"
)

// ListConfig describes list-view enumeration
type ListConfig struct {
	Kind             string            `yaml:"kind" mapstructure:"kind"`
	URL              string            `yaml:"url" mapstructure:"url"`
	DiscoverLinkText string            `yaml:"discover_link_text,omitempty" mapstructure:"discover_link_text"`
	PageParam        string            `yaml:"page_param,omitempty" mapstructure:"page_param"`
	PageSizeParam    string            `yaml:"page_size_param,omitempty" mapstructure:"page_size_param"`
	PageSize         int               `yaml:"page_size" mapstructure:"page_size"`
	FirstPage        int               `yaml:"first_page" mapstructure:"first_page"`
	SortParam        string            `yaml:"sort_param,omitempty" mapstructure:"sort_param"`
	SortColumn       string            `yaml:"sort_column,omitempty" mapstructure:"sort_column"`
	OrderParam       string            `yaml:"order_param,omitempty" mapstructure:"order_param"`
	Order            string            `yaml:"order,omitempty" mapstructure:"order"`
	TimestampParam   string            `yaml:"timestamp_param,omitempty" mapstructure:"timestamp_param"`
	ExtraParams      map[string]string `yaml:"extra_params,omitempty" mapstructure:"extra_params"`

	// JSON envelopes
	SuccessPath       string `yaml:"success_path,omitempty" mapstructure:"success_path"`
	SuccessEquals     string `yaml:"success_equals,omitempty" mapstructure:"success_equals"`
	MessagePath       string `yaml:"message_path,omitempty" mapstructure:"message_path"`
	RecordsPath       string `yaml:"records_path,omitempty" mapstructure:"records_path"`
	IDField           string `yaml:"id_field,omitempty" mapstructure:"id_field"`
	DetailURLField    string `yaml:"detail_url_field,omitempty" mapstructure:"detail_url_field"`
	DetailURLTemplate string `yaml:"detail_url_template,omitempty" mapstructure:"detail_url_template"` // {base}, {id}

	// HTML list views
	ExpectedHeaders []string `yaml:"expected_headers,omitempty" mapstructure:"expected_headers"`
	IDColumn        string   `yaml:"id_column,omitempty" mapstructure:"id_column"`
	DetailPhrases   []string `yaml:"detail_phrases,omitempty" mapstructure:"detail_phrases"`
}

// SectionsConfig is the label vocabulary used on detail pages
type SectionsConfig struct {
	Rules         []SectionRule `yaml:"rules" mapstructure:"rules"`
	FallbackLabel string        `yaml:"fallback_label" mapstructure:"fallback_label"`
}

// SectionRule maps a label to a matcher. An empty Pattern matches Label literally.
type SectionRule struct {
	Label   string `yaml:"label" mapstructure:"label"`
	Pattern string `yaml:"pattern,omitempty" mapstructure:"pattern"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:        15 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
			MaxRedirects:   10,
			MaxBodyBytes:   10 << 20,
		},
		Crawl: CrawlConfig{
			OutputDir:      "case-data",
			CheckpointFile: "progress.json",
			ReportFile:     "report.txt",
			Resume:         true,
			ItemDelay:      2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
			Color: true,
		},
		Portal: PortalConfig{
			Name: "zmjg",
		},
	}
}

package model

// Config holds all adjudex configuration. Every section is passed explicitly
// to the constructor of the component that uses it
type Config struct {
	// Version identifies this configuration set and is recorded in every dossier
	Version string `yaml:"version"`

	Oracle      OracleConfig      `yaml:"oracle"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Rules       RulesConfig       `yaml:"rules"`
	Vocabulary  VocabularyConfig  `yaml:"vocabulary"`
	Linkage     LinkageConfig     `yaml:"linkage"`
	Screening   ScreeningConfig   `yaml:"screening"`
	Decision    DecisionConfig    `yaml:"decision"`
	Confidence  ConfidenceConfig  `yaml:"confidence"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// OracleConfig configures the reasoning oracle provider
type OracleConfig struct {
	Provider   string `yaml:"provider"` // openai, anthropic, ollama, gemini, "" (disabled)
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Timeout    int    `yaml:"timeout"` // seconds per call
	MaxTokens  int    `yaml:"max_tokens"`
	MaxRetries int    `yaml:"max_retries"`
	BackoffMS  int    `yaml:"backoff_ms"` // initial backoff, doubled per attempt
	HTTPProxy  string `yaml:"http_proxy,omitempty"`
	HTTPSProxy string `yaml:"https_proxy,omitempty"`
	NoProxy    string `yaml:"no_proxy,omitempty"`
}

// ClassifierConfig configures batching and thresholds of the reasoning classifier
type ClassifierConfig struct {
	BatchSize           int      `yaml:"batch_size"`
	CoveredThreshold    float64  `yaml:"covered_threshold"`
	NotCoveredThreshold float64  `yaml:"not_covered_threshold"`
	VagueConfidenceCap  float64  `yaml:"vague_confidence_cap"`
	VagueMinLength      int      `yaml:"vague_min_length"` // descriptions shorter than this are vague
	VaguePatterns       []string `yaml:"vague_patterns"`
}

// RuleConfig is one deterministic classification rule
type RuleConfig struct {
	ID              string         `yaml:"id"`
	Pattern         string         `yaml:"pattern"`
	ItemTypes       []ItemType     `yaml:"item_types,omitempty"`
	Status          CoverageStatus `yaml:"status"`
	Category        string         `yaml:"category,omitempty"`
	Reason          string         `yaml:"reason"`
	AmountCondition string         `yaml:"amount_condition,omitempty"` // lt, le, eq, ge, gt
	AmountValue     float64        `yaml:"amount_value,omitempty"`
}

// PartCatalogEntry maps an item_code prefix to a component
type PartCatalogEntry struct {
	Prefix    string `yaml:"prefix"`
	Category  string `yaml:"category"`
	Component string `yaml:"component"`
}

// RulesConfig holds the ordered rules and the part-number catalog
type RulesConfig struct {
	Rules             []RuleConfig       `yaml:"rules"`
	FeeRule           RuleConfig         `yaml:"fee_rule"`
	PartCatalog       []PartCatalogEntry `yaml:"part_catalog"`
	CatalogConfidence float64            `yaml:"catalog_confidence"`
}

// VocabularyEntry lists the multilingual terms for one component
type VocabularyEntry struct {
	Category  string   `yaml:"category"`
	Component string   `yaml:"component"`
	Terms     []string `yaml:"terms"`
}

// VocabularyConfig is the versioned keyword vocabulary
type VocabularyConfig struct {
	Version       string            `yaml:"version"`
	MinTermLength int               `yaml:"min_term_length"`
	Entries       []VocabularyEntry `yaml:"entries"`
}

// LinkageConfig configures labor linkage
type LinkageConfig struct {
	AncillaryPatterns       []string `yaml:"ancillary_patterns"`         // fasteners, gaskets, seals
	NonCoveredLaborPatterns []string `yaml:"non_covered_labor_patterns"` // diagnosis, inspection, calibration
	MinTokenLength          int      `yaml:"min_token_length"`
}

// ScreeningConfig parameterizes the screening checks
type ScreeningConfig struct {
	WaitingDays           int               `yaml:"waiting_days"`
	ServiceIntervalMonths int               `yaml:"service_interval_months"`
	ServiceIntervalKM     int               `yaml:"service_interval_km"`
	ReportingDays         int               `yaml:"reporting_days"`
	FaultCodeCategories   map[string]string `yaml:"fault_code_categories"` // code prefix -> category
	ConsequentialPatterns []string          `yaml:"consequential_patterns"`
}

// DecisionConfig configures verdict derivation
type DecisionConfig struct {
	// InconclusiveTolerance is the number of soft INCONCLUSIVE checks tolerated before REFER
	InconclusiveTolerance int `yaml:"inconclusive_tolerance"`
}

// ConfidenceWeights are the component weights of the confidence scorer
type ConfidenceWeights struct {
	DocumentQuality     float64 `yaml:"document_quality"`
	DataCompleteness    float64 `yaml:"data_completeness"`
	Consistency         float64 `yaml:"consistency"`
	CoverageReliability float64 `yaml:"coverage_reliability"`
	DecisionClarity     float64 `yaml:"decision_clarity"`
}

// ConfidenceConfig configures the confidence scorer
type ConfidenceConfig struct {
	Weights      ConfidenceWeights `yaml:"weights"`
	HighBand     float64           `yaml:"high_band"`
	ModerateBand float64           `yaml:"moderate_band"`
}

// CacheConfig configures the oracle response cache
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTL       int    `yaml:"ttl"` // hours
	Dir       string `yaml:"dir,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	RedisURL  string `yaml:"redis_url,omitempty"`
}

// RateLimitConfig limits calls per oracle provider. Providers overrides the
// default for named providers; a non-positive rate means unlimited
type RateLimitConfig struct {
	RequestsPerSecond float64                 `yaml:"requests_per_second"`
	Burst             int                     `yaml:"burst"`
	Providers         map[string]ProviderRate `yaml:"providers,omitempty"`
}

// ProviderRate is the rate limit of one oracle provider
type ProviderRate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst,omitempty"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	OracleWorkers int `yaml:"oracle_workers"` // concurrent classifier batches per claim
	Claims        int `yaml:"claims"`         // concurrent claims in batch mode
}

// StoreConfig selects the decision store
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	Path   string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

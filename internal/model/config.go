package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete retracite configuration
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates inputs and outputs
type DataConfig struct {
	Root           string        `yaml:"root" mapstructure:"root"`                     // Directory holding the two corpora
	UnknowingFile  string        `yaml:"unknowing_file" mapstructure:"unknowing_file"` // Relative to Root unless absolute
	KnowingFile    string        `yaml:"knowing_file" mapstructure:"knowing_file"`     // Relative to Root unless absolute
	DocumentsDir   string        `yaml:"documents_dir" mapstructure:"documents_dir"`   // <PMCID>.nxml files
	OutputDir      string        `yaml:"output_dir" mapstructure:"output_dir"`         // Final table and run report
	OutputFile     string        `yaml:"output_file" mapstructure:"output_file"`       // Final table name
	CheckpointDir  string        `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"` // Per-stage tables; empty disables
	UnknowingCols  ColumnMapping `yaml:"unknowing_columns" mapstructure:"unknowing_columns"`
	KnowingCols    ColumnMapping `yaml:"knowing_columns" mapstructure:"knowing_columns"`
	DocumentSuffix string        `yaml:"document_suffix" mapstructure:"document_suffix"`
}

// ColumnMapping names the native columns of a corpus for each canonical field.
// Empty names mean the corpus does not carry the field.
type ColumnMapping struct {
	CitingPMID     string `yaml:"citing_pmid" mapstructure:"citing_pmid"`
	CitingPMCID    string `yaml:"citing_pmcid" mapstructure:"citing_pmcid"`
	CitedPMID      string `yaml:"cited_pmid" mapstructure:"cited_pmid"`
	Sentence       string `yaml:"sentence" mapstructure:"sentence"`
	Section        string `yaml:"section" mapstructure:"section"`
	PublishedYear  string `yaml:"published_year" mapstructure:"published_year"`
	RetractedYear  string `yaml:"retracted_year" mapstructure:"retracted_year"`
	PostRetraction string `yaml:"post_retraction" mapstructure:"post_retraction"`
	Context        string `yaml:"context" mapstructure:"context"`
}

// DatasetConfig controls sampling and balancing
type DatasetConfig struct {
	Size         int   `yaml:"size" mapstructure:"size"`                     // Target rows per class (N)
	Seed         int64 `yaml:"seed" mapstructure:"seed"`                     // Seeds every random stream
	Refill       bool  `yaml:"refill" mapstructure:"refill"`                 // Replace unusable rows from the remaining pool
	MinClassSize int   `yaml:"min_class_size" mapstructure:"min_class_size"` // Fatal below this many rows per class
}

// MatchConfig controls the paragraph matcher
type MatchConfig struct {
	Threshold int    `yaml:"threshold" mapstructure:"threshold"` // Strictly-greater-than cutoff, 0-100
	Segmenter string `yaml:"segmenter" mapstructure:"segmenter"` // period or terminator
}

// ResolveConfig controls per-row paragraph resolution
type ResolveConfig struct {
	Workers  int  `yaml:"workers" mapstructure:"workers"`
	Progress bool `yaml:"progress" mapstructure:"progress"`
}

// CacheConfig controls the resolution memo cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// FetchConfig controls NXML retrieval from PubMed Central
type FetchConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Tool              string        `yaml:"tool" mapstructure:"tool"`
	Email             string        `yaml:"email,omitempty" mapstructure:"email"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	Overwrite         bool          `yaml:"overwrite" mapstructure:"overwrite"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns the configuration the original dataset was built with
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Root:           "csvs",
			UnknowingFile:  "PubMed_retracted_publication_CitCntxt_withYR_v3.csv",
			KnowingFile:    "724_knowingly_post_retraction_cit.csv",
			DocumentsDir:   "nxmls",
			OutputDir:      "parsed_data",
			OutputFile:     "aggregated_min_max_normalized_features.csv",
			CheckpointDir:  "parsed_data/checkpoints",
			UnknowingCols:  DefaultUnknowingColumns(),
			KnowingCols:    DefaultKnowingColumns(),
			DocumentSuffix: ".nxml",
		},
		Dataset: DatasetConfig{
			Size:         724,
			Seed:         43,
			Refill:       true,
			MinClassSize: 1,
		},
		Match: MatchConfig{
			Threshold: 85,
			Segmenter: "period",
		},
		Resolve: ResolveConfig{
			Workers:  4,
			Progress: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".retracite-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Fetch: FetchConfig{
			BaseURL:           "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi",
			Tool:              "retracite",
			UserAgent:         "retracite/0.1 (+https://github.com/ppiankov/retracite)",
			Timeout:           30 * time.Second,
			MaxBodyBytes:      20_000_000,
			RequestsPerSecond: 3,
			BurstSize:         1,
			Workers:           3,
			RespectRobots:     false,
			MaxRetries:        3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultUnknowingColumns maps the Hsiao & Schneider citation-context corpus
func DefaultUnknowingColumns() ColumnMapping {
	return ColumnMapping{
		CitingPMID:     "pmid",
		CitingPMCID:    "pmcid",
		CitedPMID:      "intxt_pmid",
		Sentence:       "citation",
		Section:        "IMRaD",
		PublishedYear:  "year",
		RetractedYear:  "retracted_yr",
		PostRetraction: "post_retraction",
	}
}

// DefaultKnowingColumns maps the annotated knowing corpus
func DefaultKnowingColumns() ColumnMapping {
	return ColumnMapping{
		CitingPMID:    "pmid",
		CitingPMCID:   "pmcid",
		CitedPMID:     "intxt_pmid",
		Sentence:      "citation",
		Section:       "IMRaD",
		PublishedYear: "year",
		RetractedYear: "retracted_yr",
		Context:       "longer_context",
	}
}

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks option ranges
func (c *Config) Validate() error {
	switch {
	case c.Dataset.Size <= 0:
		return fmt.Errorf("%w: dataset.size must be positive, got %d", ErrInvalidConfig, c.Dataset.Size)
	case c.Dataset.MinClassSize < 0:
		return fmt.Errorf("%w: dataset.min_class_size must not be negative", ErrInvalidConfig)
	case c.Dataset.MinClassSize > c.Dataset.Size:
		return fmt.Errorf("%w: dataset.min_class_size %d exceeds dataset.size %d", ErrInvalidConfig, c.Dataset.MinClassSize, c.Dataset.Size)
	case c.Match.Threshold < 0 || c.Match.Threshold > 100:
		return fmt.Errorf("%w: match.threshold must be in [0,100], got %d", ErrInvalidConfig, c.Match.Threshold)
	case c.Data.UnknowingFile == "" || c.Data.KnowingFile == "":
		return fmt.Errorf("%w: both corpus files are required", ErrInvalidConfig)
	case c.Data.DocumentsDir == "":
		return fmt.Errorf("%w: data.documents_dir is required", ErrInvalidConfig)
	case c.Data.OutputDir == "" || c.Data.OutputFile == "":
		return fmt.Errorf("%w: data.output_dir and data.output_file are required", ErrInvalidConfig)
	case c.Data.UnknowingCols.Sentence == "" || c.Data.UnknowingCols.CitingPMCID == "":
		return fmt.Errorf("%w: unknowing_columns needs sentence and citing_pmcid", ErrInvalidConfig)
	case c.Data.KnowingCols.Context == "":
		return fmt.Errorf("%w: knowing_columns needs context", ErrInvalidConfig)
	}
	return nil
}

// Package config loads rollup configuration from YAML with environment
// variable expansion and overrides.
package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"genorollup/pkg/domain"
)

// Annotation type selectors accepted on the command line and in the
// rollup.annotation_type setting.
const (
	SelectorMPMarker      = "mpMarker"
	SelectorDiseaseMarker = "diseaseMarker"
	SelectorMPAllele      = "mpAllele"
	SelectorDiseaseAllele = "diseaseAllele"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Blob drivers for the optional load-file upload. Empty disables upload.
const (
	BlobNone       = ""
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config is the full rollup configuration.
type Config struct {
	Rollup       RollupConfig         `yaml:"rollup"`
	DockingSites []domain.DockingSite `yaml:"docking_sites"`
	Vocabulary   Vocabulary           `yaml:"vocabulary"`
	Storage      StorageConfig        `yaml:"storage"`
	Output       OutputConfig         `yaml:"output"`
	Log          LogConfig            `yaml:"log"`
	Metrics      MetricsConfig        `yaml:"metrics"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Rollup.Validate(); err != nil {
		return errors.Wrap(err, "rollup")
	}
	if err := validation.Validate(c.DockingSites, validation.Each(validation.By(validateDockingSite))); err != nil {
		return errors.Wrap(err, "docking_sites")
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.Wrap(err, "storage")
	}
	if c.Storage.Driver != DriverMemory {
		if err := c.Vocabulary.Validate(); err != nil {
			return errors.Wrap(err, "vocabulary")
		}
	}
	if err := c.Output.Validate(); err != nil {
		return errors.Wrap(err, "output")
	}
	return c.Log.Validate()
}

// RollupConfig holds the cascade and batching settings.
type RollupConfig struct {
	AnnotationType      string `yaml:"annotation_type" env:"ROLLUP_ANNOTATION_TYPE"`
	SentinelTermKey     int64  `yaml:"sentinel_term_key" env:"ROLLUP_SENTINEL_TERM_KEY"`
	MaxBatchAnnotations int    `yaml:"max_batch_annotations" env:"ROLLUP_MAX_BATCH_ANNOTATIONS"`

	// QueryChunkSize bounds the number of keys in one SQL IN list.
	QueryChunkSize int `yaml:"query_chunk_size" env:"ROLLUP_QUERY_CHUNK_SIZE"`
}

// Validate validates the rollup section.
func (c *RollupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AnnotationType, validation.Required,
			validation.In(SelectorMPMarker, SelectorDiseaseMarker, SelectorMPAllele, SelectorDiseaseAllele)),
		validation.Field(&c.SentinelTermKey, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxBatchAnnotations, validation.Required, validation.Min(1)),
		validation.Field(&c.QueryChunkSize, validation.Required, validation.Min(1)),
	)
}

func validateDockingSite(value interface{}) error {
	site, ok := value.(domain.DockingSite)
	if !ok {
		return errors.New("must be a docking site")
	}
	return validation.ValidateStruct(&site,
		validation.Field(&site.Marker, validation.Required),
		validation.Field(&site.Symbol, validation.Required),
	)
}

// StorageConfig selects the relation source.
type StorageConfig struct {
	Driver       string `yaml:"driver" env:"ROLLUP_STORAGE_DRIVER"`
	PostgresDSN  string `yaml:"postgres_dsn" env:"ROLLUP_POSTGRES_DSN"`
	SQLitePath   string `yaml:"sqlite_path" env:"ROLLUP_SQLITE_PATH"`
	SnapshotPath string `yaml:"snapshot_path" env:"ROLLUP_SNAPSHOT_PATH"`
}

// Validate validates the storage section.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite, DriverMemory)),
		validation.Field(&c.PostgresDSN, validation.When(c.Driver == DriverPostgres, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == DriverSQLite, validation.Required)),
		validation.Field(&c.SnapshotPath, validation.When(c.Driver == DriverMemory, validation.Required)),
	)
}

// OutputConfig describes where the load file goes.
type OutputConfig struct {
	Path string     `yaml:"path" env:"INFILE_NAME"`
	Blob BlobConfig `yaml:"blob"`
}

// Validate validates the output section. The path is checked by the
// commands that write a load file.
func (c *OutputConfig) Validate() error {
	return c.Blob.Validate()
}

// BlobConfig configures the optional upload of the finished load file.
type BlobConfig struct {
	Driver    string `yaml:"driver" env:"ROLLUP_BLOB_DRIVER"`
	Prefix    string `yaml:"prefix" env:"ROLLUP_BLOB_PREFIX"`
	FSRoot    string `yaml:"fs_root" env:"ROLLUP_BLOB_FS_ROOT"`
	Bucket    string `yaml:"s3_bucket" env:"ROLLUP_BLOB_S3_BUCKET"`
	Region    string `yaml:"s3_region" env:"ROLLUP_BLOB_S3_REGION"`
	Endpoint  string `yaml:"s3_endpoint" env:"ROLLUP_BLOB_S3_ENDPOINT"`
	PathStyle bool   `yaml:"s3_path_style" env:"ROLLUP_BLOB_S3_PATH_STYLE"`
}

// Enabled reports whether an upload driver is configured.
func (c BlobConfig) Enabled() bool { return c.Driver != BlobNone }

// Validate validates the blob section.
func (c *BlobConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(BlobFilesystem, BlobS3, BlobMemory)),
		validation.Field(&c.Bucket, validation.When(c.Driver == BlobS3, validation.Required)),
	)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level" env:"ROLLUP_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"ROLLUP_LOG_JSON"`
}

// Validate validates the log section.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// MetricsConfig configures the optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"ROLLUP_METRICS_TEXTFILE"`
}

// Default returns a Config carrying the store's standard keys. The caller
// still has to pick an annotation type and an output path.
func Default() *Config {
	return &Config{
		Rollup: RollupConfig{
			SentinelTermKey:     293594,
			MaxBatchAnnotations: 5000,
			QueryChunkSize:      500,
		},
		DockingSites: []domain.DockingSite{
			{Marker: 37270, Symbol: "Gt(ROSA)26Sor", Permissive: true},
			{Marker: 9936, Symbol: "Hprt", IntrinsicPhenotype: true},
			{Marker: 1092, Symbol: "Col1a1", IntrinsicPhenotype: true},
		},
		Vocabulary: DefaultVocabulary(),
		Storage:    StorageConfig{Driver: DriverPostgres},
		Log:        LogConfig{Level: "info"},
	}
}

// Override adjusts a loaded Config before validation, typically from
// command-line arguments.
type Override func(*Config)

// Load builds a Config from defaults, the optional YAML file at path,
// environment overrides and then overrides, and validates the result.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	for _, o := range overrides {
		o(cfg)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// Selector is the resolved meaning of an annotation type selector.
type Selector struct {
	Name string

	// AnnotationType is the genotype-level source annotation type key.
	AnnotationType domain.Key

	// ProvenanceTerm is the property term that records the source annotation.
	ProvenanceTerm domain.Key
	Target         domain.TargetKind
}

var selectors = map[string]Selector{
	SelectorMPMarker:      {Name: SelectorMPMarker, AnnotationType: 1002, ProvenanceTerm: 13576001, Target: domain.TargetMarker},
	SelectorDiseaseMarker: {Name: SelectorDiseaseMarker, AnnotationType: 1020, ProvenanceTerm: 13611348, Target: domain.TargetMarker},
	SelectorMPAllele:      {Name: SelectorMPAllele, AnnotationType: 1002, ProvenanceTerm: 13576001, Target: domain.TargetAllele},
	SelectorDiseaseAllele: {Name: SelectorDiseaseAllele, AnnotationType: 1020, ProvenanceTerm: 13611348, Target: domain.TargetAllele},
}

// LookupSelector returns the selector registered under name.
func LookupSelector(name string) (Selector, bool) {
	s, ok := selectors[name]
	return s, ok
}

// Selector returns the resolved annotation type selector. Load guarantees it
// exists.
func (c *Config) Selector() Selector {
	s, _ := LookupSelector(c.Rollup.AnnotationType)
	return s
}

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	IngestConfig struct {
		// Forced code page for non UTF-8 file names inside processed packages,
		// see IANA.org for character set names. Empty means no conversion.
		ZipNamesEncoding string `yaml:"zip_names_encoding,omitempty"`
		// Style basedOn chains longer than this are treated as unresolved.
		StyleDepthLimit int `yaml:"style_depth_limit" validate:"min=1,max=64"`
	}

	EngineConfig struct {
		// Browser binary to use instead of the one rod downloads on demand.
		BrowserBin string `yaml:"browser_bin,omitempty" sanitize:"path_clean"`
		NoSandbox  bool   `yaml:"no_sandbox"`
		// Hard bound on page navigation, render falls back to direct content
		// injection when exceeded.
		NavigationTimeoutSec int `yaml:"navigation_timeout_seconds" validate:"min=1"`
		// Delay after document-ready before checking image readiness.
		SettleDelayMSec int `yaml:"settle_delay_milliseconds" validate:"min=0"`
		// Bound on waiting for all images to report loaded dimensions. A page
		// exceeding it is still captured.
		ImageWaitTimeoutSec int `yaml:"image_wait_timeout_seconds" validate:"min=1"`
		// Number of simultaneously open browsing contexts.
		Contexts int `yaml:"contexts" validate:"min=1"`
	}

	PostgresConfig struct {
		Host     string       `yaml:"host"`
		Port     int          `yaml:"port" validate:"min=0,max=65535"`
		User     string       `yaml:"user"`
		Password SecretString `yaml:"password,omitempty"`
		Database string       `yaml:"database"`
		SSLMode  string       `yaml:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	}

	QueueConfig struct {
		Backend QueueBackend `yaml:"backend" validate:"gte=0"`
		// Path to the sqlite database file, used by the sqlite backend only.
		Path     string         `yaml:"path,omitempty" sanitize:"path_clean,assure_dir_exists_for_file"`
		Postgres PostgresConfig `yaml:"postgres,omitempty"`
		// Number of jobs a single worker process executes concurrently.
		Workers         int `yaml:"workers" validate:"min=1"`
		PollIntervalSec int `yaml:"poll_interval_seconds" validate:"min=1"`
		// Processing jobs older than this become claimable again.
		StaleAfterSec int `yaml:"stale_after_seconds" validate:"min=1"`
		// Terminal jobs older than this are swept away.
		ExpireAfterSec int `yaml:"expire_after_seconds" validate:"min=1"`
	}

	CacheConfig struct {
		Enable   bool         `yaml:"enable"`
		Addr     string       `yaml:"addr,omitempty"`
		Password SecretString `yaml:"password,omitempty"`
		DB       int          `yaml:"db" validate:"min=0"`
		TTLSec   int          `yaml:"ttl_seconds" validate:"min=1"`
	}

	RenderConfig struct {
		Engine EngineConfig `yaml:"engine"`
		Queue  QueueConfig  `yaml:"queue"`
		Cache  CacheConfig  `yaml:"cache"`
		// Template for object keys of rendered page images.
		PageNameTemplate string `yaml:"page_name_template" validate:"required"`
		// Width of generated preview thumbnails, 0 disables them.
		ThumbnailWidth int `yaml:"thumbnail_width" validate:"min=0"`
	}

	StoreConfig struct {
		Root string `yaml:"root" sanitize:"path_clean" validate:"required"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Ingest    IngestConfig   `yaml:"ingest"`
		Render    RenderConfig   `yaml:"render"`
		Store     StoreConfig    `yaml:"store"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

type TemplateFieldName string

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	PageNameTemplateFieldName TemplateFieldName = "page_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(PageNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"epdf/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	PageConfig struct {
		Paper            string  `yaml:"paper" validate:"required"`
		FontSize         float64 `yaml:"font_size" validate:"gt=0,lte=72"`
		MarginHorizontal float64 `yaml:"margin_horizontal" validate:"gte=0,lte=100"`
		MarginVertical   float64 `yaml:"margin_vertical" validate:"gte=0,lte=100"`
	}

	ImagesConfig struct {
		MaxWidth     int  `yaml:"max_width" validate:"gte=0"`
		MaxHeight    int  `yaml:"max_height" validate:"gte=0"`
		JPEGQuality  int  `yaml:"jpeq_quality_level" validate:"min=40,max=100"`
		RasterizeSVG bool `yaml:"rasterize_svg"`
	}

	DocumentConfig struct {
		Strategy              common.Strategy `yaml:"strategy"`
		AutoMerge             bool            `yaml:"auto_merge"`
		CleanupVolumes        bool            `yaml:"cleanup_volumes"`
		LargeFileThresholdMB  float64         `yaml:"large_file_threshold_mb" validate:"gt=0"`
		FixZip                bool            `yaml:"fix_zip"`
		StylesheetPath        string          `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string          `yaml:"output_name_template"`
		FileNameTransliterate bool            `yaml:"file_name_transliterate"`
		VolumesSuffix         string          `yaml:"volumes_suffix" validate:"required"`
		MergedSuffix          string          `yaml:"merged_suffix" validate:"required"`
		CoverTitle            string          `yaml:"cover_title" validate:"required"`
		Page                  PageConfig      `yaml:"page"`
		Images                ImagesConfig    `yaml:"images"`
	}

	RenderConfig struct {
		Command string        `yaml:"command" validate:"required"`
		Args    []string      `yaml:"args" validate:"dive,required"`
		Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	}

	SegmentConfig struct {
		FrontMatterTitle string `yaml:"front_matter_title" validate:"required"`
		Threshold        int    `yaml:"threshold" validate:"gte=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Render    RenderConfig   `yaml:"render"`
		Segment   SegmentConfig  `yaml:"segment"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, fields hold go templates which
	// are expanded at conversion time.
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
	RenderArgsFieldName         TemplateFieldName = "args"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(RenderArgsFieldName)),
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
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
		if !cfg.Document.Strategy.IsValid() {
			return nil, fmt.Errorf("unknown document strategy: %d", cfg.Document.Strategy)
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

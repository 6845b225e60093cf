// Package config holds the runtime configuration of the inspector. Values
// come from defaults, then an optional YAML file, then the environment; the
// CLI applies its flags last.
package config

import (
	"image"
	"os"
	"strconv"

	"github.com/Brownie44l1/fabric-inspector/internal/annotate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Overlay struct {
	AnchorX   int     `yaml:"anchor_x"`
	AnchorY   int     `yaml:"anchor_y"`
	FontScale float64 `yaml:"font_scale"`
	Thickness int     `yaml:"thickness"`
}

type Config struct {
	Port              string `yaml:"port"`
	ModelPath         string `yaml:"model_path"`
	MetadataPath      string `yaml:"metadata_path"`
	SharedLibraryPath string `yaml:"onnxruntime_lib"`
	UploadDir         string `yaml:"upload_dir"`
	AnnotatedDir      string `yaml:"annotated_dir"`
	TopK              int    `yaml:"top_k"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes"`
	DatabaseURL       string `yaml:"database_url"`
	LogLevel          string `yaml:"log_level"`
	PrettyLogs        bool   `yaml:"pretty_logs"`

	Overlay Overlay `yaml:"overlay"`
	// Colors overrides the built-in class colour table when non-empty.
	// Values are RGB triples.
	Colors map[string][3]uint8 `yaml:"colors"`
}

func Default() Config {
	return Config{
		Port:           "8080",
		ModelPath:      "models/model.onnx",
		MetadataPath:   "models/model_metadata.json",
		UploadDir:      "static/uploads",
		AnnotatedDir:   "static/annotated",
		TopK:           5,
		MaxUploadBytes: 32 << 20,
		LogLevel:       "info",
		Overlay: Overlay{
			AnchorX:   10,
			AnchorY:   30,
			FontScale: 1,
			Thickness: 2,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any) and
// the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":            &c.Port,
		"MODEL_PATH":      &c.ModelPath,
		"METADATA_PATH":   &c.MetadataPath,
		"ONNXRUNTIME_LIB": &c.SharedLibraryPath,
		"UPLOAD_DIR":      &c.UploadDir,
		"ANNOTATED_DIR":   &c.AnnotatedDir,
		"DATABASE_URL":    &c.DatabaseURL,
		"LOG_LEVEL":       &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("TOP_K"); ok && v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "TOP_K")
		}
		c.TopK = k
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.Errorf("port %q is not a number", c.Port)
	}
	if c.UploadDir == "" || c.AnnotatedDir == "" {
		return errors.New("upload and annotated directories are required")
	}
	if c.UploadDir == c.AnnotatedDir {
		return errors.New("upload and annotated directories must differ")
	}
	if c.TopK <= 0 {
		return errors.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Overlay.FontScale <= 0 || c.Overlay.Thickness <= 0 {
		return errors.New("overlay font_scale and thickness must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	return nil
}

// AnnotateOptions turns the overlay settings into annotator options.
func (c Config) AnnotateOptions() annotate.Options {
	opts := annotate.DefaultOptions()
	opts.Anchor = image.Pt(c.Overlay.AnchorX, c.Overlay.AnchorY)
	opts.FontScale = c.Overlay.FontScale
	opts.Thickness = c.Overlay.Thickness
	opts.TopK = c.TopK
	if len(c.Colors) > 0 {
		opts.Colors = annotate.FromTriples(c.Colors)
	}
	return opts
}

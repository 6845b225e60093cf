package config

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.AnnotateOptions()
	assert.Equal(t, image.Pt(10, 30), opts.Anchor)
	assert.Equal(t, 5, opts.TopK)
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 255, A: 255}, opts.Colors.Lookup("stain"))
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOP_K", "")

	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
top_k: 3
overlay:
  anchor_x: 5
  anchor_y: 20
  font_scale: 0.5
  thickness: 1
colors:
  knot: [10, 20, 30]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "static/uploads", cfg.UploadDir, "unset keys keep their defaults")

	opts := cfg.AnnotateOptions()
	assert.Equal(t, image.Pt(5, 20), opts.Anchor)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, opts.Colors.Lookup("knot"))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, opts.Colors.Lookup("stain"))
}

func TestAnnotateOptionsKeepsZeroAnchor(t *testing.T) {
	cfg := Default()
	cfg.Overlay.AnchorX, cfg.Overlay.AnchorY = 0, 0

	assert.Equal(t, image.Pt(0, 0), cfg.AnnotateOptions().Anchor)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":         "7000",
		"DATABASE_URL": "postgres://localhost/fabric",
		"TOP_K":        "2",
		"LOG_LEVEL":    "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "postgres://localhost/fabric", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.TopK)
	assert.Equal(t, "info", cfg.LogLevel, "empty values are ignored")

	env["TOP_K"] = "many"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"bad port":      func(c *Config) { c.Port = "http" },
		"same dirs":     func(c *Config) { c.AnnotatedDir = c.UploadDir },
		"zero top k":    func(c *Config) { c.TopK = 0 },
		"no size limit": func(c *Config) { c.MaxUploadBytes = 0 },
		"bad level":     func(c *Config) { c.LogLevel = "loud" },
		"zero stroke":   func(c *Config) { c.Overlay.Thickness = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	content := `{"format": "tiff", "out_dir": "out", "workers": 3, "max_pixels": 1000, "fit": "64x48"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Format != "tiff" || cfg.OutDir != "out" || cfg.Workers != 3 || cfg.MaxPixels != 1000 || cfg.Fit != "64x48" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(`{"out_dir": "x"}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Format != "png" || cfg.Workers < 1 || cfg.OutDir != "x" {
		t.Errorf("Expected defaults under the file values, got %+v", cfg)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"syntax":  `{"format": `,
		"unknown": `{"colour": "red"}`,
		"format":  `{"format": "gif"}`,
		"workers": `{"workers": -1}`,
		"fit":     `{"fit": "wide"}`,
	} {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestParseFit(t *testing.T) {
	for _, tc := range []struct {
		in   string
		w, h int
		ok   bool
	}{
		{"", 0, 0, true},
		{"640x480", 640, 480, true},
		{"10X20", 10, 20, true},
		{"0x10", 0, 0, false},
		{"10", 0, 0, false},
		{"axb", 0, 0, false},
	} {
		w, h, err := ParseFit(tc.in)
		if (err == nil) != tc.ok || w != tc.w || h != tc.h {
			t.Errorf("ParseFit(%q): expected %d, %d, ok=%v, got %d, %d, %v", tc.in, tc.w, tc.h, tc.ok, w, h, err)
		}
	}
}

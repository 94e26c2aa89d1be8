package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"hsipatch/pkg/config"
	"hsipatch/pkg/npy"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsipatch.yaml")

	root := newRootCmd(quietLogger())
	root.SetArgs([]string{"config", "init", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if cfg.Patch.Size != 8 {
		t.Errorf("Expected default patch size 8, got %d", cfg.Patch.Size)
	}

	// A second init must not overwrite
	root = newRootCmd(quietLogger())
	root.SetArgs([]string{"config", "init", path})
	if err := root.Execute(); err == nil {
		t.Error("Expected error when the config already exists")
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newRunCmd(quietLogger())
	if err := cmd.ParseFlags([]string{"--patch-size", "4", "--conv-dim", "2", "--no-heatmap"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg := config.DefaultConfig()
	cores := cfg.Processing.NumCores
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatalf("Failed to apply flags: %v", err)
	}
	if cfg.Patch.Size != 4 || cfg.Patch.ConvDim != 2 {
		t.Errorf("Flags not applied: %+v", cfg.Patch)
	}
	if cfg.Output.RenderHeatmap {
		t.Error("Expected heatmap to be disabled")
	}
	if cfg.Processing.NumCores != cores {
		t.Errorf("Unset flag changed cores to %d", cfg.Processing.NumCores)
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npy")
	if err := npy.Save(path, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("Failed to save array: %v", err)
	}

	var out bytes.Buffer
	root := newRootCmd(quietLogger())
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out.String(), "<f8") || !strings.Contains(out.String(), "[2 3]") {
		t.Errorf("Unexpected inspect output %q", out.String())
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsipatch.yaml")
	if err := config.CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	root := newRootCmd(quietLogger())
	root.SetArgs([]string{"run", "--config", path, "--patch-size", "7"})
	if err := root.Execute(); err == nil {
		t.Error("Expected error for odd patch size")
	}
}

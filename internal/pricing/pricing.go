// Package pricing loads per-model cost tables from a YAML file and converts
// token and image counts into USD. The table hot-reloads when the file
// changes so price updates do not require a restart.
package pricing

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// file structure of config/pricing.yaml
type tableFile struct {
	Pricing struct {
		Defaults struct {
			CombinedPer1K float64 `yaml:"combined_per_1k"`
			PerImage      float64 `yaml:"per_image"`
		} `yaml:"defaults"`
		Models map[string]map[string]modelPrice `yaml:"models"` // provider -> model -> price
		Images map[string]map[string]imagePrice `yaml:"images"` // provider -> model -> price
	} `yaml:"pricing"`
}

type modelPrice struct {
	InputPer1K    float64 `yaml:"input_per_1k"`
	OutputPer1K   float64 `yaml:"output_per_1k"`
	CombinedPer1K float64 `yaml:"combined_per_1k"`
}

type imagePrice struct {
	PerImage float64 `yaml:"per_image"`
}

// Table answers cost questions from the loaded pricing file.
type Table struct {
	mu      sync.RWMutex
	cfg     tableFile
	path    string
	log     *zap.Logger
	watcher *fsnotify.Watcher
}

// Load reads the pricing file at path and starts watching it for changes.
// A missing file is not fatal: the table falls back to defaults and logs.
func Load(path string, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{path: path, log: logger}
	if err := t.reload(); err != nil {
		logger.Warn("pricing table unavailable, using defaults", zap.String("path", path), zap.Error(err))
	}
	t.watch()
	return t
}

// Close stops the file watcher.
func (t *Table) Close() {
	if t.watcher != nil {
		_ = t.watcher.Close()
	}
}

func (t *Table) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return err
	}
	var cfg tableFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("pricing: parse %s: %w", t.path, err)
	}
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
	t.log.Info("pricing table loaded", zap.String("path", t.path))
	return nil
}

func (t *Table) watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn("pricing hot reload disabled", zap.Error(err))
		return
	}
	if err := w.Add(t.path); err != nil {
		_ = w.Close()
		return
	}
	t.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := t.reload(); err != nil {
						t.log.Warn("pricing reload failed", zap.Error(err))
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				t.log.Warn("pricing watcher error", zap.Error(err))
			}
		}
	}()
}

// defaultPerToken is the combined fallback price per token.
func (t *Table) defaultPerToken() float64 {
	if t.cfg.Pricing.Defaults.CombinedPer1K > 0 {
		return t.cfg.Pricing.Defaults.CombinedPer1K / 1000.0
	}
	return 0.000002
}

// CostForSplit computes the USD cost of a call from its token split, using
// the combined rate when no split pricing exists for the model.
func (t *Table) CostForSplit(model string, inputTokens, outputTokens int) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, models := range t.cfg.Pricing.Models {
		if m, ok := models[model]; ok {
			if m.InputPer1K > 0 && m.OutputPer1K > 0 {
				return (float64(inputTokens)/1000.0)*m.InputPer1K + (float64(outputTokens)/1000.0)*m.OutputPer1K
			}
			if m.CombinedPer1K > 0 {
				return (float64(inputTokens+outputTokens) / 1000.0) * m.CombinedPer1K
			}
			break
		}
	}
	return float64(inputTokens+outputTokens) * t.defaultPerToken()
}

// CostForImages computes the USD cost of generating n images with a model.
func (t *Table) CostForImages(model string, n int) float64 {
	if n <= 0 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, models := range t.cfg.Pricing.Images {
		if m, ok := models[model]; ok && m.PerImage > 0 {
			return float64(n) * m.PerImage
		}
	}
	if t.cfg.Pricing.Defaults.PerImage > 0 {
		return float64(n) * t.cfg.Pricing.Defaults.PerImage
	}
	return float64(n) * 0.04
}

package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// PatternProvider supplies pattern-derived checklist items for a stage.
// Pattern data is advisory enrichment: lookup failures are reported to the
// caller, which logs and continues without the items.
type PatternProvider interface {
	ItemsForStage(stage models.Stage, activePatterns []string) ([]models.ChecklistItem, error)
}

// patternItem is one checklist item definition inside a pattern file.
type patternItem struct {
	ID               string `yaml:"id"`
	Label            string `yaml:"label"`
	Stage            string `yaml:"stage"`
	Required         bool   `yaml:"required"`
	EvidenceRequired bool   `yaml:"evidence_required"`
}

// patternFile is the on-disk shape of a pattern definition.
type patternFile struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Checklist []patternItem `yaml:"checklist"`
}

// filePatternProvider loads pattern definitions from YAML files in a
// directory, one pattern per file.
type filePatternProvider struct {
	dir string
}

// NewFilePatternProvider creates a PatternProvider reading <dir>/*.yaml.
func NewFilePatternProvider(dir string) PatternProvider {
	return &filePatternProvider{dir: dir}
}

// ItemsForStage loads every active pattern and returns its items scoped to
// the given stage. A missing patterns directory yields no items and no
// error; unreadable or malformed pattern files are an error so the gate
// can log the degradation.
func (p *filePatternProvider) ItemsForStage(stage models.Stage, activePatterns []string) ([]models.ChecklistItem, error) {
	if len(activePatterns) == 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading patterns directory: %w", err)
	}

	active := make(map[string]struct{}, len(activePatterns))
	for _, id := range activePatterns {
		active[id] = struct{}{}
	}

	var items []models.ChecklistItem
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		pattern, err := p.loadPattern(filepath.Join(p.dir, name))
		if err != nil {
			return nil, err
		}
		if _, ok := active[pattern.ID]; !ok {
			continue
		}
		for _, item := range pattern.Checklist {
			if models.Stage(item.Stage) != stage {
				continue
			}
			items = append(items, models.ChecklistItem{
				ID:               item.ID,
				Label:            item.Label,
				Required:         item.Required,
				EvidenceRequired: item.EvidenceRequired,
				Source:           models.SourcePattern,
				Pattern:          pattern.ID,
			})
		}
	}
	return items, nil
}

func (p *filePatternProvider) loadPattern(path string) (*patternFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern %s: %w", filepath.Base(path), err)
	}
	var pattern patternFile
	if err := yaml.Unmarshal(data, &pattern); err != nil {
		return nil, fmt.Errorf("parsing pattern %s: %w", filepath.Base(path), err)
	}
	if pattern.ID == "" {
		return nil, fmt.Errorf("pattern %s: missing id", filepath.Base(path))
	}
	return &pattern, nil
}

package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xxxsen/vrag/internal/model"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

type batchFile struct {
	Items []model.BatchItem `yaml:"items"`
}

func LoadBatchFile(path string) ([]model.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) ([]model.BatchItem, error) {
	var f batchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode batch file: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("batch file has no items: %w", appErr.ErrInvalid)
	}
	for i, item := range f.Items {
		if strings.TrimSpace(item.Concept) == "" {
			return nil, fmt.Errorf("batch item %d has no concept: %w", i, appErr.ErrInvalid)
		}
		if RenderPrompt(item) == "" {
			return nil, fmt.Errorf("batch item %d has no action or template: %w", i, appErr.ErrInvalid)
		}
	}
	return f.Items, nil
}

package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/authz-engine/resolution/pkg/types"
)

// Loader reads policy definitions from disk. Each file holds a single
// named policy in YAML (JSON parses as a YAML subset).
type Loader struct {
	validator *Validator
	logger    *zap.Logger
}

// NewLoader creates a policy loader.
func NewLoader(validator *Validator, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		validator: validator,
		logger:    logger,
	}
}

// LoadFromDirectory loads every policy file in a directory. Files that fail
// to parse or validate are skipped with a warning; startup callers decide
// whether a partial set is acceptable by checking the returned count.
func (l *Loader) LoadFromDirectory(path string) ([]*types.Policy, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}

	var policies []*types.Policy
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		filePath := filepath.Join(path, entry.Name())
		p, err := l.LoadFromFile(filePath)
		if err != nil {
			l.logger.Warn("skipping policy file",
				zap.String("file", filePath),
				zap.Error(err),
			)
			continue
		}
		policies = append(policies, p)
	}

	return policies, nil
}

// LoadFromFile loads and validates a single policy file.
func (l *Loader) LoadFromFile(filePath string) (*types.Policy, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	p := &types.Policy{}
	if err := yaml.Unmarshal(content, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	if l.validator != nil {
		if err := l.validator.ValidatePolicy(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

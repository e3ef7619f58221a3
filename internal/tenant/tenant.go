// Package tenant holds the brand directory: which tenants exist, which
// scopes each one has enabled, and where their pages are served.
package tenant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Brand is one tenant.
type Brand struct {
	ID      string   `yaml:"id" mapstructure:"id"`
	Name    string   `yaml:"name" mapstructure:"name"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Scopes  []string `yaml:"scopes" mapstructure:"scopes"`
}

// ScopeEnabled reports whether the brand may use scope.
func (b Brand) ScopeEnabled(scope string) bool {
	for _, s := range b.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Directory is an in-memory brand registry, safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	brands map[string]Brand
}

// NewDirectory indexes brands by id. Brands without scopes get the
// default "events" scope.
func NewDirectory(brands []Brand) (*Directory, error) {
	d := &Directory{brands: make(map[string]Brand, len(brands))}
	for _, b := range brands {
		if err := d.Put(b); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Put adds or replaces a brand.
func (d *Directory) Put(b Brand) error {
	b.ID = strings.TrimSpace(b.ID)
	if b.ID == "" {
		return fmt.Errorf("tenant: brand id is required")
	}
	if len(b.Scopes) == 0 {
		b.Scopes = []string{"events"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brands[b.ID] = b
	return nil
}

// Brand looks a brand up by id.
func (d *Directory) Brand(_ context.Context, id string) (Brand, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.brands[id]
	return b, ok
}

type seedFile struct {
	Tenants []Brand `yaml:"tenants"`
}

// LoadFile reads brands from a YAML seed file with a top-level "tenants"
// list.
func LoadFile(path string) ([]Brand, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}
	return f.Tenants, nil
}

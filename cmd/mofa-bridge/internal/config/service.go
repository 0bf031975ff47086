package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ErrServiceNotFound is returned by LoadService when the service file does
// not exist.
var ErrServiceNotFound = errors.New("service config not found")

// ValidateServiceName checks that a service name is usable as a file name.
func ValidateServiceName(service string) error {
	if service == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(service, `/\`) {
		return fmt.Errorf("service name %q must not contain path separators", service)
	}
	if strings.HasPrefix(service, ".") {
		return fmt.Errorf("service name %q must not start with '.'", service)
	}
	return nil
}

// ServicePath returns the YAML file of a service within a context
// directory.
func ServicePath(contextDir, service string) string {
	return filepath.Join(contextDir, service+".yaml")
}

// LoadService loads "{contextDir}/{service}.yaml" into a T.
func LoadService[T any](contextDir, service string) (*T, error) {
	path := ServicePath(contextDir, service)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (expected: %s)", ErrServiceNotFound, service, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// SaveService writes a service configuration to the context directory.
func SaveService[T any](contextDir, service string, v *T) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", service, err)
	}

	path := ServicePath(contextDir, service)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SetServiceValue sets one top-level key of a service file, creating the
// file if needed. value is stored as the YAML scalar it parses to, so
// "16000" is written as a number.
func SetServiceValue(contextDir, service, key, value string) error {
	m, err := loadMap(contextDir, service)
	if err != nil {
		return err
	}
	m[key] = scalarValue(value)
	return SaveService(contextDir, service, &m)
}

func loadMap(contextDir, service string) (map[string]any, error) {
	m, err := LoadService[map[string]any](contextDir, service)
	switch {
	case errors.Is(err, ErrServiceNotFound):
		return map[string]any{}, nil
	case err != nil:
		return nil, err
	case *m == nil:
		return map[string]any{}, nil
	}
	return *m, nil
}

func scalarValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return v
	default:
		return s
	}
}

// ListServices returns the service names configured in a context directory.
func ListServices(contextDir string) ([]string, error) {
	entries, err := os.ReadDir(contextDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list services: %w", err)
	}

	var services []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			services = append(services, name[:len(name)-len(ext)])
		}
	}
	return services, nil
}

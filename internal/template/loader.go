package template

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.json
var builtinFS embed.FS

const builtinDir = "builtin"

// rulesBaseName is the file name (without extension) that holds the
// detection rules inside a templates directory.
const rulesBaseName = "rules"

// Library bundles a catalog with the detector compiled against it.
type Library struct {
	Catalog  *Catalog
	Detector *Detector
}

// Builtin returns the library shipped with the binary.
func Builtin() (*Library, error) {
	return Load(nil, "")
}

// Load builds a library from the builtin templates overlaid with the
// templates found in dir on fsys. A rules file in dir replaces the builtin
// rules entirely. An empty dir or a missing directory loads builtins only.
func Load(fsys afero.Fs, dir string) (*Library, error) {
	catalog := NewCatalog()
	embedded := afero.FromIOFS{FS: builtinFS}

	rules, err := loadDir(embedded, builtinDir, catalog)
	if err != nil {
		return nil, fmt.Errorf("loading builtin templates: %w", err)
	}
	if rules == nil {
		return nil, fmt.Errorf("builtin rules missing")
	}

	if fsys != nil && dir != "" {
		exists, err := afero.DirExists(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("checking templates dir: %w", err)
		}
		if exists {
			userRules, err := loadDir(fsys, dir, catalog)
			if err != nil {
				return nil, err
			}
			if userRules != nil {
				rules = userRules
			}
		}
	}

	detector, err := NewDetector(catalog, rules.Rules, rules.Default)
	if err != nil {
		return nil, err
	}
	return &Library{Catalog: catalog, Detector: detector}, nil
}

// loadDir registers every template file in dir and returns the rules file,
// if the directory has one.
func loadDir(fsys afero.Fs, dir string, catalog *Catalog) (*RulesFile, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var rules *RulesFile
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) == rulesBaseName {
			rf, err := LoadRules(fsys, path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rules = rf
			continue
		}
		schema, err := LoadSchema(fsys, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := catalog.Register(schema); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}

// LoadSchema reads and parses a template file. The format follows the file
// extension: .json, .yaml or .yml.
func LoadSchema(fsys afero.Fs, path string) (*TemplateSchema, error) {
	var schema TemplateSchema
	if err := decodeFile(fsys, path, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// LoadRules reads and parses a detection rules file.
func LoadRules(fsys afero.Fs, path string) (*RulesFile, error) {
	var rf RulesFile
	if err := decodeFile(fsys, path, &rf); err != nil {
		return nil, err
	}
	return &rf, nil
}

func decodeFile(fsys afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%s: unsupported template format", path)
	}
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", path, err)
	}
	return nil
}

func isTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// LoadPolicies reads every .rego file under dir, recursively, sorted by
// path. A missing directory yields no policies.
func LoadPolicies(fsys afero.Fs, dir string) ([]Policy, error) {
	if dir == "" {
		return nil, nil
	}
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("checking policies directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var policies []Policy
	err = afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		content, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading policy %s: %w", path, err)
		}
		policies = append(policies, Policy{
			Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
			Path:    path,
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking policies directory: %w", err)
	}

	sort.Slice(policies, func(i, j int) bool { return policies[i].Path < policies[j].Path })
	return policies, nil
}

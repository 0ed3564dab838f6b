// Package briefing reads submitted client questionnaires from disk.
package briefing

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is a supported briefing encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%s: unsupported briefing format (want .json, .yaml or .toml)", path)
}

// Load reads and parses the briefing at path.
func Load(fsys afero.Fs, path string) (domain.Briefing, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading briefing: %w", err)
	}
	b, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes a briefing document. The top level must be a mapping.
// Numbers become float64 and dates YYYY-MM-DD strings whatever the encoding,
// so a briefing looks the same after a JSON round trip.
func Parse(data []byte, format Format) (domain.Briefing, error) {
	raw := map[string]any{}
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported briefing format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing briefing: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	out := make(domain.Briefing, len(raw))
	for k, v := range raw {
		if strings.TrimSpace(k) == "" {
			return nil, domain.NewValidationError("briefing", "empty question key")
		}
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return formatTime(x)
	case toml.LocalDate:
		return x.String()
	case toml.LocalDateTime:
		return x.String()
	case toml.LocalTime:
		return x.String()
	}
	return v
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(domain.DateLayout)
	}
	return t.Format(time.RFC3339)
}

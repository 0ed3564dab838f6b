package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/briefing"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// optionalInt is a pflag.Value that remembers whether it was set, so a
// position of 0 differs from "append".
type optionalInt struct {
	v *int
}

var _ pflag.Value = (*optionalInt)(nil)

func (o *optionalInt) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.Itoa(*o.v)
}

func (o *optionalInt) Set(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	o.v = &n
	return nil
}

func (o *optionalInt) Type() string { return "int" }

func (o *optionalInt) Ptr() *int { return o.v }

func parseDate(s string) (*time.Time, error) {
	d, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, domain.NewValidationError("due", "invalid date %q (want YYYY-MM-DD)", s)
	}
	return &d, nil
}

// splitIDs accepts "a,b,c" as well as repeated args.
func splitIDs(args []string) []string {
	var out []string
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// briefingInput collects a briefing from a file plus key=value overrides.
type briefingInput struct {
	file string
	sets []string
}

func (bi *briefingInput) register(fs *pflag.FlagSet) {
	fs.StringVar(&bi.file, "briefing", "", "Briefing file (.json, .yaml or .toml)")
	fs.StringArrayVar(&bi.sets, "set", nil, "Briefing answer key=value; dotted keys nest (site.area_m2=180)")
}

func (bi *briefingInput) empty() bool {
	return bi.file == "" && len(bi.sets) == 0
}

// load returns nil when neither a file nor overrides were given.
func (bi *briefingInput) load(fsys afero.Fs) (domain.Briefing, error) {
	if bi.empty() {
		return nil, nil
	}
	b := domain.Briefing{}
	if bi.file != "" {
		loaded, err := briefing.Load(fsys, bi.file)
		if err != nil {
			return nil, err
		}
		b = loaded
	}
	for _, kv := range bi.sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, domain.NewValidationError("set", "%q is not key=value", kv)
		}
		setPath(b, strings.Split(key, "."), scalar(raw))
	}
	return b, nil
}

// scalar types a command-line value the way YAML would: 3, true, 2.5, text.
func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	switch t := v.(type) {
	case int:
		return float64(t)
	case string, bool, float64:
		return t
	default:
		return raw
	}
}

func setPath(m map[string]any, path []string, v any) {
	if len(path) == 1 {
		m[path[0]] = v
		return
	}
	next, ok := m[path[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		m[path[0]] = next
	}
	setPath(next, path[1:], v)
}

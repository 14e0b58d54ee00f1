package dork

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-scout/internal/model"
)

//go:embed seeds.yaml
var defaultSeeds []byte

type seedFile struct {
	Dorks []model.Dork `yaml:"dorks"`
}

// LoadSeeds reads dork seeds from a YAML file. An empty path loads the
// embedded defaults.
func LoadSeeds(path string) ([]model.Dork, error) {
	data := defaultSeeds
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dork: read seeds %s", path)
		}
	}
	return ParseSeeds(data)
}

// ParseSeeds parses seed YAML. New seeds start in the explore pool;
// duplicate texts (case-insensitive) are dropped.
func ParseSeeds(data []byte) ([]model.Dork, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "dork: parse seeds")
	}

	seen := make(map[string]bool, len(f.Dorks))
	out := make([]model.Dork, 0, len(f.Dorks))
	for _, d := range f.Dorks {
		d.Text = strings.TrimSpace(d.Text)
		key := strings.ToLower(d.Text)
		if d.Text == "" || seen[key] {
			continue
		}
		seen[key] = true
		d.Industry = strings.ToLower(strings.TrimSpace(d.Industry))
		d.Pool = model.PoolExplore
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, eris.New("dork: no seeds defined")
	}
	return out, nil
}

// MergeSeeds adds seeds whose text is not yet known to existing. Stored
// dorks keep their history.
func MergeSeeds(existing, seeds []model.Dork) ([]model.Dork, int) {
	known := make(map[string]bool, len(existing))
	for _, d := range existing {
		known[strings.ToLower(d.Text)] = true
	}
	added := 0
	for _, s := range seeds {
		if known[strings.ToLower(s.Text)] {
			continue
		}
		known[strings.ToLower(s.Text)] = true
		existing = append(existing, s)
		added++
	}
	return existing, added
}

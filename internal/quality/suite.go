package quality

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed suite.yaml
var defaultSuite []byte

type suiteFile struct {
	Suites []struct {
		Relation string      `yaml:"relation"`
		Checks   []Assertion `yaml:"checks"`
	} `yaml:"suites"`
}

// ParseSuite decodes a YAML suite definition into validated assertions.
func ParseSuite(data []byte) ([]Assertion, error) {
	var f suiteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "quality: parse suite")
	}

	var out []Assertion
	for _, s := range f.Suites {
		if s.Relation == "" {
			return nil, eris.New("quality: suite entry missing relation")
		}
		for _, a := range s.Checks {
			a.Relation = s.Relation
			if a.Severity == "" {
				a.Severity = SeverityWarn
			}
			if err := a.Validate(); err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// LoadSuite returns the assertions from the given path, or the embedded
// default suite when path is empty.
func LoadSuite(path string) ([]Assertion, error) {
	if path == "" {
		return ParseSuite(defaultSuite)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: read suite %s", path)
	}
	return ParseSuite(data)
}

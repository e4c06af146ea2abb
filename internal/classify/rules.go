package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ruleSpec is the on-disk shape of one rule.
type ruleSpec struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// rulesFile is the on-disk shape of a rules override file.
type rulesFile struct {
	Version int        `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file. The file order is
// the evaluation order, so operators editing the file control precedence
// directly. Every pattern must compile and every category must be valid;
// a partially valid file is rejected as a whole.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read rules file %s", path)
	}
	return ParseRules(data)
}

// ParseRules parses and validates YAML rule table bytes.
func ParseRules(data []byte) ([]Rule, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "classify: unmarshal rules")
	}
	if len(rf.Rules) == 0 {
		return nil, eris.New("classify: rules file contains no rules")
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for i, spec := range rf.Rules {
		if spec.Name == "" {
			return nil, eris.Errorf("classify: rule %d has no name", i)
		}
		r, err := Compile(spec.Name, spec.Pattern, Category(spec.Category))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

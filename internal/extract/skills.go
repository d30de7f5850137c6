package extract

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed skills.yaml
var skillsYAML []byte

type skillEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type skillVocabulary struct {
	Skills []skillEntry `yaml:"skills"`
}

// SkillMatcher maps free text onto the canonical skill vocabulary.
type SkillMatcher struct {
	entries []compiledSkill
}

type compiledSkill struct {
	name string
	re   *regexp.Regexp
}

// NewSkillMatcher compiles the embedded vocabulary. Aliases match on
// word boundaries so "go" in "Chicago" does not count.
func NewSkillMatcher() (*SkillMatcher, error) {
	var vocab skillVocabulary
	if err := yaml.Unmarshal(skillsYAML, &vocab); err != nil {
		return nil, eris.Wrap(err, "extract: parse skill vocabulary")
	}

	m := &SkillMatcher{}
	for _, e := range vocab.Skills {
		if e.Name == "" || len(e.Aliases) == 0 {
			continue
		}
		parts := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			parts = append(parts, regexp.QuoteMeta(strings.ToLower(a)))
		}
		// \b does not sit next to '#' or '.', so anchor on
		// non-alphanumerics instead.
		re, err := regexp.Compile(`(?i)(^|[^a-z0-9])(` + strings.Join(parts, "|") + `)($|[^a-z0-9+#])`)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile skill %q", e.Name)
		}
		m.entries = append(m.entries, compiledSkill{name: e.Name, re: re})
	}
	return m, nil
}

// Match returns the canonical skills mentioned in text, sorted.
func (m *SkillMatcher) Match(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, e := range m.entries {
		if e.re.MatchString(text) {
			out = append(out, e.name)
		}
	}
	sort.Strings(out)
	return out
}

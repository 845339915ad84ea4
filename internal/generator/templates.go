package generator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// DefaultTopic is returned by DetectTopic when no topic keyword matches.
const DefaultTopic = "default"

// Topic groups the keywords that identify a subject and its follow-up questions.
type Topic struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	Questions []string `yaml:"questions"`
}

// TemplateSet is the data behind TemplateGenerator.
type TemplateSet struct {
	Topics           []Topic                             `yaml:"topics"`
	DefaultQuestions []string                            `yaml:"default_questions"`
	TypeQuestions    map[model.InterventionType][]string `yaml:"type_questions"`
	Bodies           map[string][]string                 `yaml:"bodies"`
	SummaryFallback  string                              `yaml:"summary_fallback"`
}

// DefaultTemplates returns the embedded template set.
func DefaultTemplates() TemplateSet {
	set, err := parseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return set
}

// LoadTemplates reads a template set from path. An empty path returns the defaults.
func LoadTemplates(path string) (TemplateSet, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TemplateSet{}, fmt.Errorf("read templates %s: %w", path, err)
	}
	return parseTemplates(data)
}

func parseTemplates(data []byte) (TemplateSet, error) {
	var set TemplateSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return TemplateSet{}, fmt.Errorf("parse templates: %w", err)
	}
	if len(set.DefaultQuestions) == 0 {
		return TemplateSet{}, fmt.Errorf("templates need at least one default question")
	}
	for i, t := range set.Topics {
		if t.Name == "" || len(t.Questions) == 0 {
			return TemplateSet{}, fmt.Errorf("topic %d needs a name and questions", i)
		}
		for j, kw := range t.Keywords {
			set.Topics[i].Keywords[j] = facilitator.NormalizeText(kw)
		}
	}
	return set, nil
}

// DetectTopic returns the first topic with a keyword in text, or DefaultTopic.
func (s TemplateSet) DetectTopic(text string) string {
	normalized := facilitator.NormalizeText(text)
	for _, t := range s.Topics {
		for _, kw := range t.Keywords {
			if kw != "" && facilitator.ContainsPhrase(normalized, kw) {
				return t.Name
			}
		}
	}
	return DefaultTopic
}

// Questions returns the follow-up questions for an intervention type and topic.
// Bridges have their own questions; other types use the topic's.
func (s TemplateSet) Questions(kind model.InterventionType, topic string) []string {
	if qs := s.TypeQuestions[kind]; len(qs) > 0 {
		return qs
	}
	for _, t := range s.Topics {
		if t.Name == topic {
			return t.Questions
		}
	}
	return s.DefaultQuestions
}

// fill replaces {placeholders} in tmpl.
func fill(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

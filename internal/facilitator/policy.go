package facilitator

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy holds the observer's matching rules. Phrase lists live in YAML so they
// can be tuned per deployment without a rebuild.
type Policy struct {
	Frustration       FrustrationRule  `yaml:"frustration"`
	RecurringQuestion QuestionRule     `yaml:"recurring_question"`
	Conflict          PhraseRule       `yaml:"conflict"`
	Technical         TopicRule        `yaml:"technical_confusion"`
	Contribution      ContributionRule `yaml:"strong_human_contribution"`
	Stalled           StalledRule      `yaml:"stalled_discussion"`
	Unanswered        UnansweredRule   `yaml:"unanswered_question"`
	Myths             PhraseRule       `yaml:"myths"`
	Reply             ReplyRule        `yaml:"follow_up_reply"`
}

// PhraseRule fires when at least MinCount messages contain a phrase.
type PhraseRule struct {
	Phrases  []string `yaml:"phrases"`
	MinCount int      `yaml:"min_count"`
}

// FrustrationRule also requires a minimum share of the window's messages.
type FrustrationRule struct {
	Phrases  []string `yaml:"phrases"`
	MinCount int      `yaml:"min_count"`
	MinRatio float64  `yaml:"min_ratio"`
}

// QuestionRule counts doubt phrases and, optionally, messages ending in "?".
type QuestionRule struct {
	Phrases      []string `yaml:"phrases"`
	MinCount     int      `yaml:"min_count"`
	QuestionMark bool     `yaml:"question_mark"`
}

type TopicRule struct {
	Topics       []string `yaml:"topics"`
	MinFrequency int      `yaml:"min_frequency"`
	RequireDoubt bool     `yaml:"require_doubt"`
}

// ContributionRule scores each message; the best one above MinScore is highlighted.
type ContributionRule struct {
	Phrases           []string `yaml:"phrases"`
	MinScore          int      `yaml:"min_score"`
	PhrasePoints      int      `yaml:"phrase_points"`
	LongMessageChars  int      `yaml:"long_message_chars"`
	LongMessagePoints int      `yaml:"long_message_points"`
	StructurePoints   int      `yaml:"structure_points"`
	NumbersPoints     int      `yaml:"numbers_points"`
}

// StalledRule detects a discussion circling one word over the last Lookback messages.
type StalledRule struct {
	Stopwords     []string `yaml:"stopwords"`
	Lookback      int      `yaml:"lookback"`
	MinWordLength int      `yaml:"min_word_length"`
	MinShare      float64  `yaml:"min_share"`
}

// UnansweredRule flags a question nobody else replied to within MinLatency.
type UnansweredRule struct {
	MinLatency time.Duration `yaml:"min_latency"`
}

// ReplyRule recognizes an answer to a follow-up question: a message sharing a
// keyword with the question, or one that opens like a direct answer.
type ReplyRule struct {
	Openers          []string `yaml:"openers"`
	Stopwords        []string `yaml:"stopwords"`
	MinKeywordLength int      `yaml:"min_keyword_length"`
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() Policy {
	var p Policy
	if err := yaml.Unmarshal(defaultPolicyYAML, &p); err != nil {
		panic(fmt.Sprintf("embedded observer policy: %v", err))
	}
	return p.normalized()
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep their
// embedded default; an empty path returns the default policy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parsing policy file: %w", err)
	}
	return p.normalized(), nil
}

// LoadPolicyOrDefault is LoadPolicy for long-running processes: a missing or
// malformed file is logged and the embedded policy is used instead.
func LoadPolicyOrDefault(ctx context.Context, path string) Policy {
	p, err := LoadPolicy(path)
	if err != nil {
		slog.WarnContext(ctx, "observer policy unusable, falling back to embedded default",
			"path", path,
			"error", err)
		return DefaultPolicy()
	}
	return p
}

func (p Policy) normalized() Policy {
	p.Frustration.Phrases = normalizeAll(p.Frustration.Phrases)
	p.RecurringQuestion.Phrases = normalizeAll(p.RecurringQuestion.Phrases)
	p.Conflict.Phrases = normalizeAll(p.Conflict.Phrases)
	p.Technical.Topics = normalizeAll(p.Technical.Topics)
	p.Contribution.Phrases = normalizeAll(p.Contribution.Phrases)
	p.Stalled.Stopwords = normalizeAll(p.Stalled.Stopwords)
	p.Myths.Phrases = normalizeAll(p.Myths.Phrases)
	p.Reply.Openers = normalizeAll(p.Reply.Openers)
	p.Reply.Stopwords = normalizeAll(p.Reply.Stopwords)

	p.Frustration.MinCount = max(p.Frustration.MinCount, 1)
	p.RecurringQuestion.MinCount = max(p.RecurringQuestion.MinCount, 1)
	p.Conflict.MinCount = max(p.Conflict.MinCount, 1)
	p.Technical.MinFrequency = max(p.Technical.MinFrequency, 1)
	p.Stalled.MinWordLength = max(p.Stalled.MinWordLength, 1)
	p.Myths.MinCount = max(p.Myths.MinCount, 1)
	p.Reply.MinKeywordLength = max(p.Reply.MinKeywordLength, 1)
	return p
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, ph := range phrases {
		n := NormalizeText(ph)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

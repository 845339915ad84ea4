package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
)

var errNoArticle = errors.New("bridge to article without an article")

// TemplateGenerator writes interventions from canned bodies and topic questions.
// It never calls out and never times out.
type TemplateGenerator struct {
	set  TemplateSet
	pick func(n int) int
}

type TemplateOption func(*TemplateGenerator)

// WithPicker replaces the random choice among templates.
func WithPicker(pick func(n int) int) TemplateOption {
	return func(g *TemplateGenerator) { g.pick = pick }
}

func NewTemplateGenerator(set TemplateSet, opts ...TemplateOption) *TemplateGenerator {
	g := &TemplateGenerator{set: set, pick: rand.IntN}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *TemplateGenerator) Generate(_ context.Context, req facilitator.GenerationRequest) (facilitator.Generated, error) {
	topic := g.topicOf(req)

	body, err := g.body(req, topic)
	if err != nil {
		return facilitator.Generated{}, err
	}

	return facilitator.Generated{
		Body:             body,
		FollowUpQuestion: g.choose(g.set.Questions(req.Type, topic)),
	}, nil
}

// topicOf detects the topic of the trigger, falling back to the newest
// message in the window that has one.
func (g *TemplateGenerator) topicOf(req facilitator.GenerationRequest) string {
	if topic := g.set.DetectTopic(req.Trigger.Content); topic != DefaultTopic {
		return topic
	}
	for i := len(req.Window) - 1; i >= 0; i-- {
		if topic := g.set.DetectTopic(req.Window[i].Content); topic != DefaultTopic {
			return topic
		}
	}
	return DefaultTopic
}

const mythBodyKey = "bridge_to_article_myth"

func (g *TemplateGenerator) body(req facilitator.GenerationRequest, topic string) (string, error) {
	values := map[string]string{"topic": topicLabel(req.Observation, topic)}
	key := string(req.Type)

	switch req.Type {
	case model.InterventionSummary:
		values["topics"] = g.summaryTopics(req.Observation, topic)

	case model.InterventionHighlight:
		ev, _ := req.Observation.Evidence(model.PatternStrongHumanContribution)
		if ev.AuthorID == "" {
			key = "highlight_anonymous"
		}
		values["author"] = "@" + ev.AuthorID

	case model.InterventionBridgeToArticle:
		if req.Article == nil {
			return "", errNoArticle
		}
		values["title"] = req.Article.Title
		values["url"] = req.Article.URL
		ev, _ := req.Observation.Evidence(model.PatternTechnicalConfusion)
		if len(ev.Myths) > 0 && len(g.set.Bodies[mythBodyKey]) > 0 {
			key = mythBodyKey
			values["myth"] = ev.Myths[0]
		}

	case model.InterventionQuestion, model.InterventionBridgeToApp:

	default:
		return "", fmt.Errorf("unknown intervention type %q", req.Type)
	}

	templates := g.set.Bodies[key]
	if len(templates) == 0 {
		return "", fmt.Errorf("no %s body templates", key)
	}
	return fill(g.choose(templates), values), nil
}

func (g *TemplateGenerator) summaryTopics(obs model.Observation, topic string) string {
	if len(obs.Topics) > 0 {
		return strings.Join(obs.Topics, ", ")
	}
	if topic != DefaultTopic {
		return topic
	}
	return g.set.SummaryFallback
}

func (g *TemplateGenerator) choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[g.pick(len(options))]
}

func topicLabel(obs model.Observation, topic string) string {
	if len(obs.Topics) > 0 {
		return obs.Topics[0]
	}
	if topic != DefaultTopic {
		return topic
	}
	return "esse assunto"
}

package facilitator

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"nfc.app/facilitator/internal/model"
)

// ErrEmptyFollowUp is returned when generated content has no follow-up question.
var ErrEmptyFollowUp = errors.New("generated content has no follow-up question")

// ErrEmptyBody is returned when generated content has no body.
var ErrEmptyBody = errors.New("generated content has no body")

// GenerationRequest is everything a generator may use to write an intervention.
type GenerationRequest struct {
	Article     *model.Article
	CommunityID string
	UserID      string
	Type        model.InterventionType
	Pattern     model.PatternKind
	Window      []model.Message
	Trigger     model.Message
	Observation model.Observation
}

// Generated is the text of an intervention split into its two mandatory parts.
type Generated struct {
	Body             string
	FollowUpQuestion string
}

// Generator writes intervention content. It may fail or time out.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (Generated, error)
}

// ArticleFinder looks up an article covering any of the given topics.
// It returns nil, nil when nothing matches.
type ArticleFinder interface {
	FindArticle(ctx context.Context, topics []string) (*model.Article, error)
}

// followUpArrow separates the body from the closing question.
const followUpArrow = "\n-> "

// ComposeContent validates g and renders it as "body\n-> question?".
// Every intervention ends with a question mark.
func ComposeContent(g Generated) (Generated, string, error) {
	g.Body = strings.TrimSpace(g.Body)
	g.FollowUpQuestion = strings.TrimSpace(g.FollowUpQuestion)
	if g.Body == "" {
		return g, "", ErrEmptyBody
	}
	if strings.IndexFunc(g.FollowUpQuestion, isWordRune) < 0 {
		return g, "", ErrEmptyFollowUp
	}
	if !strings.HasSuffix(g.FollowUpQuestion, "?") {
		g.FollowUpQuestion = strings.TrimRightFunc(g.FollowUpQuestion, func(r rune) bool {
			return r == '.' || r == '!' || r == '…' || unicode.IsSpace(r)
		}) + "?"
	}
	return g, g.Body + followUpArrow + g.FollowUpQuestion, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

package facilitator

import (
	"strings"
	"unicode/utf8"
)

// ReplyMatcher decides whether a message answers a follow-up question.
type ReplyMatcher interface {
	IsReply(question, reply string) bool
}

// KeywordReplyMatcher applies the follow-up reply rule of a Policy.
type KeywordReplyMatcher struct {
	rule      ReplyRule
	stopwords map[string]struct{}
}

func NewKeywordReplyMatcher(policy Policy) *KeywordReplyMatcher {
	stopwords := make(map[string]struct{}, len(policy.Reply.Stopwords))
	for _, w := range policy.Reply.Stopwords {
		stopwords[w] = struct{}{}
	}
	return &KeywordReplyMatcher{rule: policy.Reply, stopwords: stopwords}
}

// IsReply is true when reply opens like a direct answer or mentions one of the
// question's keywords.
func (m *KeywordReplyMatcher) IsReply(question, reply string) bool {
	text := NormalizeText(reply)
	if text == "" {
		return false
	}

	for _, opener := range m.rule.Openers {
		if strings.HasPrefix(text+" ", opener+" ") {
			return true
		}
	}
	for _, kw := range m.keywords(question) {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (m *KeywordReplyMatcher) keywords(question string) []string {
	var out []string
	for _, w := range strings.Fields(NormalizeText(question)) {
		if utf8.RuneCountInString(w) < m.rule.MinKeywordLength {
			continue
		}
		if _, ok := m.stopwords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

package facilitator

import (
	"math"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"nfc.app/facilitator/internal/model"
)

// PatternObserver classifies a window of human messages. It reports only and
// never mutates state.
type PatternObserver interface {
	Observe(window []model.Message) model.Observation
}

// KeywordObserver matches the phrase lists and structural rules of a Policy.
type KeywordObserver struct {
	policy Policy
}

func NewKeywordObserver(policy Policy) *KeywordObserver {
	return &KeywordObserver{policy: policy}
}

type analyzedMessage struct {
	msg          model.Message
	text         string
	frustration  []string
	doubt        []string
	conflict     []string
	contribution []string
	topics       []string
	myths        []string
	question     bool
}

func (o *KeywordObserver) analyze(m model.Message) analyzedMessage {
	text := NormalizeText(m.Content)
	a := analyzedMessage{
		msg:          m,
		text:         text,
		frustration:  matchPhrases(text, o.policy.Frustration.Phrases),
		doubt:        matchPhrases(text, o.policy.RecurringQuestion.Phrases),
		conflict:     matchPhrases(text, o.policy.Conflict.Phrases),
		contribution: matchPhrases(text, o.policy.Contribution.Phrases),
		topics:       matchPhrases(text, o.policy.Technical.Topics),
		myths:        matchPhrases(text, o.policy.Myths.Phrases),
	}
	a.question = len(a.doubt) > 0 ||
		(o.policy.RecurringQuestion.QuestionMark && strings.HasSuffix(strings.TrimSpace(m.Content), "?"))
	return a
}

func (o *KeywordObserver) Observe(window []model.Message) model.Observation {
	var obs model.Observation
	if len(window) == 0 {
		return obs
	}

	msgs := make([]analyzedMessage, 0, len(window))
	for _, m := range window {
		msgs = append(msgs, o.analyze(m))
	}

	detectors := []func([]analyzedMessage) (model.PatternEvidence, bool){
		o.conflict,
		o.frustration,
		o.recurringQuestion,
		o.technicalConfusion,
		o.contribution,
	}
	for _, detect := range detectors {
		if ev, ok := detect(msgs); ok {
			obs.Detected = append(obs.Detected, ev)
		}
	}
	obs.Topics = o.topics(msgs)
	return obs
}

func (o *KeywordObserver) conflict(msgs []analyzedMessage) (model.PatternEvidence, bool) {
	ev := phraseEvidence(model.PatternConflict, msgs, func(a analyzedMessage) []string { return a.conflict })
	return ev, ev.Frequency >= o.policy.Conflict.MinCount
}

func (o *KeywordObserver) frustration(msgs []analyzedMessage) (model.PatternEvidence, bool) {
	rule := o.policy.Frustration
	ev := phraseEvidence(model.PatternFrustration, msgs, func(a analyzedMessage) []string { return a.frustration })
	ratio := float64(ev.Frequency) / float64(len(msgs))
	return ev, ev.Frequency >= rule.MinCount && ratio >= rule.MinRatio
}

// recurringQuestion combines repeated doubts, a stalled discussion and a
// question left unanswered.
func (o *KeywordObserver) recurringQuestion(msgs []analyzedMessage) (model.PatternEvidence, bool) {
	ev := model.PatternEvidence{Kind: model.PatternRecurringQuestion}

	var questions []analyzedMessage
	for _, a := range msgs {
		if a.question {
			questions = append(questions, a)
		}
	}
	if len(questions) >= o.policy.RecurringQuestion.MinCount {
		for _, a := range questions {
			ev.MessageIDs = appendUnique(ev.MessageIDs, a.msg.ID)
			ev.Keywords = appendUniqueStrings(ev.Keywords, a.doubt...)
		}
	}
	if word, ids, ok := o.stalled(msgs); ok {
		ev.Keywords = appendUniqueStrings(ev.Keywords, word)
		ev.MessageIDs = appendUnique(ev.MessageIDs, ids...)
	}
	if id, ok := o.unanswered(msgs); ok {
		ev.MessageIDs = appendUnique(ev.MessageIDs, id)
	}

	ev.Frequency = len(ev.MessageIDs)
	return ev, ev.Frequency > 0
}

// technicalConfusion fires on repeated technical topics around a doubt, or on
// a known myth. Myth phrases lead the keywords so article lookup sees them first.
func (o *KeywordObserver) technicalConfusion(msgs []analyzedMessage) (model.PatternEvidence, bool) {
	rule := o.policy.Technical
	ev := phraseEvidence(model.PatternTechnicalConfusion, msgs, func(a analyzedMessage) []string { return a.topics })

	myths := phraseEvidence(model.PatternTechnicalConfusion, msgs, func(a analyzedMessage) []string { return a.myths })
	if myths.Frequency > 0 && myths.Frequency >= o.policy.Myths.MinCount {
		ev.Myths = slices.Clone(myths.Keywords)
		ev.Keywords = appendUniqueStrings(myths.Keywords, ev.Keywords...)
		ev.MessageIDs = appendUnique(myths.MessageIDs, ev.MessageIDs...)
		ev.Frequency = len(ev.MessageIDs)
		return ev, true
	}

	if ev.Frequency < rule.MinFrequency {
		return ev, false
	}
	if !rule.RequireDoubt {
		return ev, true
	}
	for _, a := range msgs {
		if len(a.topics) > 0 && a.question {
			return ev, true
		}
	}
	return ev, false
}

func (o *KeywordObserver) contribution(msgs []analyzedMessage) (model.PatternEvidence, bool) {
	rule := o.policy.Contribution
	ev := model.PatternEvidence{Kind: model.PatternStrongHumanContribution}

	var best *analyzedMessage
	for i := range msgs {
		score := o.score(msgs[i])
		if score < rule.MinScore {
			continue
		}
		ev.Frequency++
		if best == nil || score >= ev.Score {
			best = &msgs[i]
			ev.Score = score
		}
	}
	if best == nil {
		return ev, false
	}
	ev.MessageIDs = []int64{best.msg.ID}
	ev.Keywords = best.contribution
	ev.AuthorID = best.msg.AuthorID
	return ev, true
}

// score rates a message 0-100 on markers of a useful, structured contribution.
func (o *KeywordObserver) score(a analyzedMessage) int {
	rule := o.policy.Contribution
	score := len(a.contribution) * rule.PhrasePoints
	if utf8.RuneCountInString(a.msg.Content) > rule.LongMessageChars {
		score += rule.LongMessagePoints
	}
	if strings.Contains(a.msg.Content, "\n") {
		score += rule.StructurePoints
	}
	if strings.IndexFunc(a.msg.Content, unicode.IsDigit) >= 0 {
		score += rule.NumbersPoints
	}
	return min(score, 100)
}

// stalled finds a word repeated across most of the last few messages.
func (o *KeywordObserver) stalled(msgs []analyzedMessage) (string, []int64, bool) {
	rule := o.policy.Stalled
	if rule.Lookback <= 0 || rule.MinShare <= 0 || len(msgs) < rule.Lookback {
		return "", nil, false
	}

	recent := msgs[len(msgs)-rule.Lookback:]
	counts := make(map[string]int)
	for _, a := range recent {
		seen := make(map[string]struct{})
		for _, w := range strings.Fields(a.text) {
			if utf8.RuneCountInString(w) < rule.MinWordLength ||
				slices.Contains(rule.Stopwords, w) ||
				slices.Contains(o.policy.Technical.Topics, w) {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			counts[w]++
		}
	}

	need := int(math.Ceil(rule.MinShare * float64(rule.Lookback)))
	words := make([]string, 0, len(counts))
	for w, n := range counts {
		if n >= need {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "", nil, false
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	ids := make([]int64, 0, len(recent))
	for _, a := range recent {
		if ContainsPhrase(a.text, words[0]) {
			ids = append(ids, a.msg.ID)
		}
	}
	return words[0], ids, true
}

// unanswered reports a question whose author is the only one who spoke since,
// for at least MinLatency.
func (o *KeywordObserver) unanswered(msgs []analyzedMessage) (int64, bool) {
	latency := o.policy.Unanswered.MinLatency
	if latency <= 0 || len(msgs) < 2 {
		return 0, false
	}

	last := msgs[len(msgs)-1].msg
	start := len(msgs) - 1
	for start > 0 && msgs[start-1].msg.AuthorID == last.AuthorID {
		start--
	}
	for _, a := range msgs[start : len(msgs)-1] {
		if a.question && last.CreatedAt.Sub(a.msg.CreatedAt) >= latency {
			return a.msg.ID, true
		}
	}
	return 0, false
}

func (o *KeywordObserver) topics(msgs []analyzedMessage) []string {
	var out []string
	for _, topic := range o.policy.Technical.Topics {
		for _, a := range msgs {
			if ContainsPhrase(a.text, topic) {
				out = append(out, topic)
				break
			}
		}
	}
	return out
}

func phraseEvidence(kind model.PatternKind, msgs []analyzedMessage, hits func(analyzedMessage) []string) model.PatternEvidence {
	ev := model.PatternEvidence{Kind: kind}
	for _, a := range msgs {
		h := hits(a)
		if len(h) == 0 {
			continue
		}
		ev.Frequency++
		ev.MessageIDs = append(ev.MessageIDs, a.msg.ID)
		ev.Keywords = appendUniqueStrings(ev.Keywords, h...)
	}
	return ev
}

func appendUnique(ids []int64, add ...int64) []int64 {
	for _, id := range add {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func appendUniqueStrings(list []string, add ...string) []string {
	for _, s := range add {
		if !slices.Contains(list, s) {
			list = append(list, s)
		}
	}
	return list
}

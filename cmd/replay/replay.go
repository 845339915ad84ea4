package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/lock"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/service"
	"nfc.app/facilitator/internal/store/memory"
)

// lineGap is how far the clock moves for lines without a timestamp.
const lineGap = time.Minute

var replayStart = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

type transcriptLine struct {
	CommunityID string    `json:"community_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	At          time.Time `json:"at"`
}

// readTranscript parses one JSON object per line. Blank lines and lines
// starting with # are skipped.
func readTranscript(r io.Reader) ([]transcriptLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []transcriptLine
	n := 0
	for scanner.Scan() {
		n++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var line transcriptLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("transcript line %d: %w", n, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return lines, nil
}

type replayOptions struct {
	Facilitator config.FacilitatorConfig
	Policy      facilitator.Policy
	Generator   facilitator.Generator
	Articles    facilitator.ArticleFinder
	Sampler     facilitator.Sampler
}

type replayClock struct {
	now time.Time
}

func (c *replayClock) Now() time.Time { return c.now }

// advance moves to at, or by lineGap when at is unset. Time never goes back.
func (c *replayClock) advance(at time.Time) {
	switch {
	case at.IsZero():
		c.now = c.now.Add(lineGap)
	case at.After(c.now):
		c.now = at
	}
}

type replayer struct {
	clock    *replayClock
	services *service.Services
}

func newReplayer(opts replayOptions) *replayer {
	clock := &replayClock{now: replayStart}
	db := memory.New(memory.WithClock(clock.Now))
	settings := facilitator.NewSettings(opts.Facilitator)

	engineOpts := []facilitator.EngineOption{facilitator.WithClock(clock)}
	if opts.Sampler != nil {
		engineOpts = append(engineOpts, facilitator.WithSampler(opts.Sampler))
	}
	if opts.Articles != nil {
		engineOpts = append(engineOpts, facilitator.WithArticleFinder(opts.Articles))
	}
	engine := facilitator.NewEngine(db.Stores(), db, facilitator.NewKeywordObserver(opts.Policy), opts.Generator, settings, engineOpts...)

	return &replayer{
		clock: clock,
		services: service.NewServices(service.Deps{
			Stores:     db.Stores(),
			TxRunner:   db,
			Engine:     engine,
			Locker:     lock.NewKeyedMutex(),
			Producer:   queue.NopProducer{},
			StatsCache: cache.NewMemoryCache(64, time.Minute),
			Settings:   settings,
			Clock:      clock,
			Replies:    facilitator.NewKeywordReplyMatcher(opts.Policy),
		}),
	}
}

type replaySummary struct {
	Messages      int
	Skipped       int
	Interventions int
	Answered      int
	Ignored       int
	ByType        map[model.InterventionType]int
	Suppressed    map[facilitator.SuppressionReason]int
	Communities   []model.FacilitatorStats
}

func (r *replayer) run(ctx context.Context, lines []transcriptLine, out io.Writer) (*replaySummary, error) {
	summary := &replaySummary{
		ByType:     make(map[model.InterventionType]int),
		Suppressed: make(map[facilitator.SuppressionReason]int),
	}
	var communities []string
	seen := make(map[string]bool)

	for i, line := range lines {
		r.clock.advance(line.At)

		res, err := r.services.Messages().Post(ctx, line.CommunityID, line.AuthorID, line.Content)
		if err != nil {
			if errors.Is(err, service.ErrInvalidMessage) {
				summary.Skipped++
				fmt.Fprintf(out, "line %d skipped: %v\n", i+1, err)
				continue
			}
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		summary.Messages++
		if !seen[line.CommunityID] {
			seen[line.CommunityID] = true
			communities = append(communities, line.CommunityID)
		}

		switch res.FollowUp {
		case facilitator.FollowUpAnswered:
			summary.Answered++
			fmt.Fprintf(out, "line %d: @%s answered the follow-up\n", i+1, line.AuthorID)
		case facilitator.FollowUpIgnored:
			summary.Ignored++
		}

		if !res.Decision.Intervene {
			summary.Suppressed[res.Decision.Reason]++
			continue
		}
		summary.Interventions++
		summary.ByType[res.Decision.Type]++

		fmt.Fprintf(out, "line %d [%s] %s after @%s: %q\n",
			i+1, r.clock.Now().Format(time.RFC3339), res.Decision.Type, line.AuthorID, logger.Truncate(line.Content, 60))
		fmt.Fprintf(out, "  pattern: %s\n", res.Decision.Pattern)
		for _, l := range strings.Split(res.Decision.Content, "\n") {
			fmt.Fprintf(out, "  | %s\n", l)
		}
	}

	for _, id := range communities {
		stats, err := r.services.Stats().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", id, err)
		}
		summary.Communities = append(summary.Communities, *stats)
	}
	return summary, nil
}

func (s *replaySummary) print(out io.Writer) {
	fmt.Fprintf(out, "\nmessages: %d  skipped: %d  interventions: %d  answered: %d  ignored: %d\n",
		s.Messages, s.Skipped, s.Interventions, s.Answered, s.Ignored)

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-20s %d\n", t, s.ByType[model.InterventionType(t)])
	}

	reasons := make([]string, 0, len(s.Suppressed))
	for r := range s.Suppressed {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	if len(reasons) > 0 {
		fmt.Fprintln(out, "suppressed:")
	}
	for _, r := range reasons {
		fmt.Fprintf(out, "  %-20s %d\n", r, s.Suppressed[facilitator.SuppressionReason(r)])
	}

	for _, c := range s.Communities {
		fmt.Fprintf(out, "community %s: %d human messages pending, %d pending follow-ups\n",
			c.CommunityID, c.HumanMessagesSince, c.PendingFollowUps)
	}
}

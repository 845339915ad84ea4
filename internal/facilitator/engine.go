package facilitator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// SuppressionReason explains why the engine stayed silent.
type SuppressionReason string

const (
	ReasonNone            SuppressionReason = ""
	ReasonCadence         SuppressionReason = "cadence"
	ReasonCooldown        SuppressionReason = "cooldown"
	ReasonCap             SuppressionReason = "cap"
	ReasonProbability     SuppressionReason = "probability"
	ReasonNoPattern       SuppressionReason = "no-pattern"
	ReasonGenerationError SuppressionReason = "generation-error"
	ReasonStoreError      SuppressionReason = "store-error"
	ReasonContention      SuppressionReason = "contention"
)

// Decision is either Suppressed(Reason) or Intervene(Type, Content).
type Decision struct {
	Intervention *model.Intervention
	Reason       SuppressionReason
	Type         model.InterventionType
	Pattern      model.PatternKind
	Content      string
	Intervene    bool
}

// Suppressed builds a silent decision.
func Suppressed(reason SuppressionReason) Decision {
	return Decision{Reason: reason}
}

func (d Decision) String() string {
	if d.Intervene {
		return fmt.Sprintf("intervene(%s)", d.Type)
	}
	return fmt.Sprintf("suppressed(%s)", d.Reason)
}

// gateClosed aborts a commit when fresh state no longer passes a gate.
type gateClosed struct {
	reason SuppressionReason
}

func (g *gateClosed) Error() string { return "gate closed: " + string(g.reason) }

// Engine decides whether the AI persona speaks after a human message.
// It never returns an error: every failure becomes a suppression.
type Engine struct {
	stores    store.Provider
	tx        store.TxRunner
	observer  PatternObserver
	generator Generator
	articles  ArticleFinder
	settings  *Settings
	clock     Clock
	sampler   Sampler

	cadence     *CadenceTracker
	cooldown    *CooldownLedger
	dailyCap    *DailyCapCounter
	probability *ProbabilityAdjuster
}

type EngineOption func(*Engine)

func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

func WithSampler(s Sampler) EngineOption {
	return func(e *Engine) { e.sampler = s }
}

// WithArticleFinder enables bridging technical confusion to knowledge-base articles.
func WithArticleFinder(f ArticleFinder) EngineOption {
	return func(e *Engine) { e.articles = f }
}

func NewEngine(stores store.Provider, tx store.TxRunner, observer PatternObserver, generator Generator, settings *Settings, opts ...EngineOption) *Engine {
	e := &Engine{
		stores:    stores,
		tx:        tx,
		observer:  observer,
		generator: generator,
		settings:  settings,
		clock:     SystemClock,
		sampler:   RandomSampler,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cadence = NewCadenceTracker(stores.Cadence(), settings)
	e.cooldown = NewCooldownLedger(stores.UserStates(), settings, e.clock)
	e.dailyCap = NewDailyCapCounter(stores.UserStates(), settings, e.clock)
	e.probability = NewProbabilityAdjuster(stores.UserStates(), settings, e.sampler)
	return e
}

// Decide runs the gates in order (cadence, cooldown, cap, probability, pattern),
// generates content and commits every side effect in one transaction.
func (e *Engine) Decide(ctx context.Context, communityID, userID string, trigger model.Message) Decision {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CommunityID: logger.Ptr(communityID),
		UserID:      logger.Ptr(userID),
		MessageID:   logger.Ptr(trigger.ID),
		Component:   "facilitator.engine",
	})

	sc := logger.StartSpan(ctx, "facilitator.decide")
	defer sc.End()
	ctx = sc.Context()

	d := e.decide(ctx, communityID, userID, trigger)

	sc.SetAttributes(
		attribute.Bool("decision.intervene", d.Intervene),
		attribute.String("decision.reason", string(d.Reason)),
		attribute.String("decision.type", string(d.Type)),
	)
	return d
}

func (e *Engine) decide(ctx context.Context, communityID, userID string, trigger model.Message) Decision {
	cfg := e.settings.Load()

	ok, err := e.cadence.MeetsThreshold(ctx, communityID)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}
	if !ok {
		return e.suppress(ctx, ReasonCadence, nil)
	}

	onCooldown, err := e.cooldown.IsOnCooldown(ctx, userID, communityID)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}
	if onCooldown {
		return e.suppress(ctx, ReasonCooldown, nil)
	}

	reached, err := e.dailyCap.HasReachedCap(ctx, userID, communityID)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}
	if reached {
		return e.suppress(ctx, ReasonCap, nil)
	}

	lucky, err := e.probability.SampleShouldIntervene(ctx, userID, communityID)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}
	if !lucky {
		return e.suppress(ctx, ReasonProbability, nil)
	}

	recent, err := e.stores.Messages().ListRecent(ctx, communityID, cfg.WindowSize)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}
	window := humanMessages(recent, cfg.AIPersonaID)

	obs := e.observer.Observe(window)
	if obs.Primary() == model.PatternNone {
		return e.suppress(ctx, ReasonNoPattern, nil)
	}

	bridges, err := e.dailyCap.BridgesToday(ctx, userID, communityID)
	if err != nil {
		return e.suppress(ctx, ReasonStoreError, err)
	}

	sel := e.selectType(ctx, cfg, obs, bridges < cfg.MaxDailyBridges)

	gen, content, err := e.generate(ctx, cfg, GenerationRequest{
		Article:     sel.article,
		CommunityID: communityID,
		UserID:      userID,
		Type:        sel.typ,
		Pattern:     sel.pattern,
		Window:      window,
		Trigger:     trigger,
		Observation: obs,
	})
	if err != nil {
		return e.suppress(ctx, ReasonGenerationError, err)
	}

	for attempt := 1; ; attempt++ {
		iv, err := e.commit(ctx, cfg, communityID, userID, trigger, sel, gen, content)

		var gate *gateClosed
		switch {
		case err == nil:
			ctx = logger.WithLogFields(ctx, logger.LogFields{InterventionID: logger.Ptr(iv.ID)})
			slog.InfoContext(ctx, "intervention committed",
				"type", iv.Type,
				"pattern", iv.Pattern,
				"attempt", attempt)
			return Decision{
				Intervention: iv,
				Type:         iv.Type,
				Pattern:      iv.Pattern,
				Content:      iv.Content,
				Intervene:    true,
			}
		case errors.As(err, &gate):
			return e.suppress(ctx, gate.reason, nil)
		case errors.Is(err, store.ErrConflict) && attempt < 2:
			slog.DebugContext(ctx, "state changed during commit, retrying with fresh state")
		case errors.Is(err, store.ErrConflict):
			return e.suppress(ctx, ReasonContention, err)
		default:
			return e.suppress(ctx, ReasonStoreError, err)
		}
	}
}

type selection struct {
	article *model.Article
	typ     model.InterventionType
	pattern model.PatternKind
}

// selectType maps the highest-priority pattern to an intervention type. When
// the user already received the day's bridges, bridges become questions.
func (e *Engine) selectType(ctx context.Context, cfg config.FacilitatorConfig, obs model.Observation, bridgeAllowed bool) selection {
	sel := selection{pattern: obs.Primary()}

	switch sel.pattern {
	case model.PatternConflict:
		sel.typ = model.InterventionSummary

	case model.PatternFrustration:
		ev, _ := obs.Evidence(model.PatternFrustration)
		switch {
		case cfg.AppBridge && ev.Frequency >= cfg.AppBridgeMinFrequency:
			sel.typ = model.InterventionBridgeToApp
		case obs.Has(model.PatternStrongHumanContribution):
			sel.typ = model.InterventionHighlight
		default:
			sel.typ = model.InterventionQuestion
		}

	case model.PatternTechnicalConfusion:
		sel.typ = model.InterventionQuestion
		if e.articles == nil || !bridgeAllowed {
			break
		}
		ev, _ := obs.Evidence(model.PatternTechnicalConfusion)
		article, err := e.articles.FindArticle(ctx, ev.Keywords)
		if err != nil {
			slog.WarnContext(ctx, "article lookup failed, falling back to question", "error", err)
			break
		}
		if article != nil {
			sel.typ = model.InterventionBridgeToArticle
			sel.article = article
		}

	case model.PatternStrongHumanContribution:
		sel.typ = model.InterventionHighlight

	default:
		sel.typ = model.InterventionQuestion
	}

	if sel.typ.IsBridge() && !bridgeAllowed {
		slog.InfoContext(ctx, "daily bridge limit reached, asking a question instead",
			"type", sel.typ,
			"max_daily_bridges", cfg.MaxDailyBridges)
		sel.typ = model.InterventionQuestion
		sel.article = nil
	}
	return sel
}

func (e *Engine) generate(ctx context.Context, cfg config.FacilitatorConfig, req GenerationRequest) (Generated, string, error) {
	gctx, cancel := context.WithTimeout(ctx, cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	gen, err := e.generator.Generate(gctx, req)
	if err != nil {
		return Generated{}, "", fmt.Errorf("generate %s: %w", req.Type, err)
	}

	gen, content, err := ComposeContent(gen)
	if err != nil {
		return Generated{}, "", err
	}

	slog.DebugContext(ctx, "intervention content generated",
		"type", req.Type,
		"latency_ms", time.Since(start).Milliseconds())
	return gen, content, nil
}

// commit re-checks the state gates on fresh state and applies every side
// effect atomically.
func (e *Engine) commit(
	ctx context.Context,
	cfg config.FacilitatorConfig,
	communityID, userID string,
	trigger model.Message,
	sel selection,
	gen Generated,
	content string,
) (*model.Intervention, error) {
	var record *model.Intervention
	err := e.tx.WithTx(ctx, func(s store.Provider) error {
		now := e.clock.Now()

		cadence, err := loadCadence(ctx, s.Cadence(), communityID)
		if err != nil {
			return err
		}
		if !meetsCadence(cadence, cfg.MinHumanMessages) {
			return &gateClosed{reason: ReasonCadence}
		}

		user, err := loadUserState(ctx, s.UserStates(), cfg, userID, cfg.ScopeKey(communityID))
		if err != nil {
			return err
		}
		if onCooldown(user, now, cfg.Cooldown) {
			return &gateClosed{reason: ReasonCooldown}
		}
		if capReached(user, cfg, now) {
			return &gateClosed{reason: ReasonCap}
		}

		resetCadence(&cadence, now)
		if err := s.Cadence().Save(ctx, &cadence); err != nil {
			return err
		}

		recordCooldown(&user, now)
		incrementDaily(&user, cfg.DayKey(now), sel.typ.IsBridge())
		if err := s.UserStates().Save(ctx, &user); err != nil {
			return err
		}

		iv := &model.Intervention{
			ID:               id.New(),
			CommunityID:      communityID,
			UserID:           userID,
			TriggerMessageID: trigger.ID,
			Type:             sel.typ,
			Pattern:          sel.pattern,
			Body:             gen.Body,
			FollowUpQuestion: gen.FollowUpQuestion,
			Content:          content,
			CreatedAt:        now,
		}
		if err := s.Interventions().Create(ctx, iv); err != nil {
			return fmt.Errorf("create intervention: %w", err)
		}

		err = registerWatch(ctx, s.FollowUps(), &model.FollowUpWatch{
			InterventionID: iv.ID,
			UserID:         userID,
			CommunityID:    communityID,
			Deadline:       now.Add(cfg.FollowUpWindow),
			CreatedAt:      now,
		})
		if err != nil && !errors.Is(err, ErrWatchPending) {
			return err
		}
		if err != nil {
			slog.DebugContext(ctx, "follow-up already pending, not registering another watch")
		}

		record = iv
		return nil
	})
	return record, err
}

func (e *Engine) suppress(ctx context.Context, reason SuppressionReason, err error) Decision {
	switch reason {
	case ReasonStoreError, ReasonGenerationError, ReasonContention:
		slog.WarnContext(ctx, "intervention suppressed", "reason", reason, "error", err)
	case ReasonCadence:
		slog.DebugContext(ctx, "intervention suppressed", "reason", reason)
	default:
		slog.InfoContext(ctx, "intervention suppressed", "reason", reason)
	}
	return Suppressed(reason)
}

// humanMessages drops messages authored by the AI persona.
func humanMessages(msgs []model.Message, aiPersonaID string) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsFrom(aiPersonaID) {
			out = append(out, m)
		}
	}
	return out
}

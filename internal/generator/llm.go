package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nfc.app/facilitator/common/llm"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
)

type interventionResponse struct {
	Body             string `json:"body" jsonschema_description:"One or two short sentences addressed to the group, no greeting"`
	FollowUpQuestion string `json:"follow_up_question" jsonschema_description:"A single open question inviting the group to reply, ending with a question mark"`
}

var interventionSchema = llm.GenerateSchema[interventionResponse]()

const interventionPromptVersion = "v1"

// LLMGenerator writes interventions with a structured-output LLM call.
type LLMGenerator struct {
	llm         llm.Client
	maxAttempts int
	backoff     time.Duration
}

type LLMOption func(*LLMGenerator)

// WithRetry sets how many calls are made and the base of the exponential backoff.
func WithRetry(attempts int, backoff time.Duration) LLMOption {
	return func(g *LLMGenerator) {
		if attempts > 0 {
			g.maxAttempts = attempts
		}
		g.backoff = backoff
	}
}

func NewLLMGenerator(client llm.Client, opts ...LLMOption) *LLMGenerator {
	g := &LLMGenerator{llm: client, maxAttempts: 3, backoff: time.Second}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *LLMGenerator) Generate(ctx context.Context, req facilitator.GenerationRequest) (facilitator.Generated, error) {
	prompt := buildPrompt(req)

	var response interventionResponse
	var llmResp *llm.Response
	start := time.Now()

	var err error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		llmResp, err = g.llm.Chat(ctx, llm.Request{
			SystemPrompt: interventionSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "intervention_response",
			Schema:       interventionSchema,
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) || attempt == g.maxAttempts-1 {
			break
		}
		slog.WarnContext(ctx, "intervention generation retry",
			"attempt", attempt+1,
			"error", err)

		select {
		case <-ctx.Done():
			return facilitator.Generated{}, fmt.Errorf("intervention generation: %w", ctx.Err())
		case <-time.After(g.backoff << attempt):
		}
	}
	if err != nil {
		return facilitator.Generated{}, fmt.Errorf("intervention generation: %w", err)
	}

	attrs := []any{
		"model", g.llm.Model(),
		"prompt_version", interventionPromptVersion,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if llmResp != nil {
		attrs = append(attrs,
			"prompt_tokens", llmResp.PromptTokens,
			"completion_tokens", llmResp.CompletionTokens)
	}
	slog.InfoContext(ctx, "intervention generated", attrs...)

	return facilitator.Generated{
		Body:             response.Body,
		FollowUpQuestion: response.FollowUpQuestion,
	}, nil
}

func buildPrompt(req facilitator.GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString("## Intervention\n")
	sb.WriteString(fmt.Sprintf("type: %s\n", req.Type))
	sb.WriteString(fmt.Sprintf("pattern: %s\n", req.Pattern))
	if len(req.Observation.Topics) > 0 {
		sb.WriteString(fmt.Sprintf("topics: %s\n", strings.Join(req.Observation.Topics, ", ")))
	}
	if ev, ok := req.Observation.Evidence(model.PatternStrongHumanContribution); ok && req.Type == model.InterventionHighlight {
		sb.WriteString(fmt.Sprintf("highlight author: @%s\n", ev.AuthorID))
	}
	if ev, ok := req.Observation.Evidence(model.PatternTechnicalConfusion); ok && len(ev.Myths) > 0 {
		sb.WriteString(fmt.Sprintf("myths to correct: %s\n", strings.Join(ev.Myths, ", ")))
	}
	if req.Article != nil {
		sb.WriteString(fmt.Sprintf("article: %s (%s) - %s\n", req.Article.Title, req.Article.URL, req.Article.Summary))
	}
	sb.WriteString("\n")

	sb.WriteString("## Conversation (oldest first)\n")
	for _, m := range req.Window {
		sb.WriteString(fmt.Sprintf("- [@%s]: %s\n", m.AuthorID, m.Content))
	}

	return sb.String()
}

const interventionSystemPrompt = `You are the facilitator of a peer support community about weight loss and health.
You rarely speak. When you do, it is to help the humans talk to each other, never to take over.

Write in Brazilian Portuguese, casual and warm, without emojis or hashtags.

## Intervention types

- summary: the discussion got heated. Summarize the positions neutrally in one or two sentences.
- highlight: someone wrote a valuable contribution. Point the group to it, mentioning the author.
- question: the group is stuck, frustrated or repeating the same doubt. Open the discussion up.
- bridge_to_article: a technical doubt is covered by the article given. Mention its title and link.
- bridge_to_app: someone struggles with consistency. Mention that the app helps organize routine, no sales pitch.

## Rules

- body: at most two short sentences
- follow_up_question: exactly one open question to the group, ending with "?"
- Never give medical prescriptions or diagnoses
- When myths are listed, correct them gently and without blaming anyone
- Never invent studies, numbers or links other than the article given`

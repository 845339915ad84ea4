package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nfc.app/facilitator/internal/facilitator"
)

// Fallback tries generators in order and returns the first usable result.
type Fallback struct {
	generators []facilitator.Generator
}

func NewFallback(generators ...facilitator.Generator) *Fallback {
	return &Fallback{generators: generators}
}

func (f *Fallback) Generate(ctx context.Context, req facilitator.GenerationRequest) (facilitator.Generated, error) {
	var errs []error
	for i, g := range f.generators {
		gen, err := g.Generate(ctx, req)
		if err == nil {
			if _, _, err = facilitator.ComposeContent(gen); err == nil {
				return gen, nil
			}
		}
		errs = append(errs, err)
		slog.WarnContext(ctx, "generator failed, trying next",
			"generator", fmt.Sprintf("%T", g),
			"position", i,
			"error", err)
	}
	if len(errs) == 0 {
		return facilitator.Generated{}, errors.New("no generators configured")
	}
	return facilitator.Generated{}, errors.Join(errs...)
}

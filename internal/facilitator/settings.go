package facilitator

import (
	"context"
	"log/slog"
	"sync/atomic"

	"nfc.app/facilitator/core/config"
)

// Settings holds the facilitator configuration read at decision time. It can be
// swapped while the engine runs.
type Settings struct {
	cfg atomic.Pointer[config.FacilitatorConfig]
}

func NewSettings(cfg config.FacilitatorConfig) *Settings {
	s := &Settings{}
	s.Store(context.Background(), cfg)
	return s
}

// Load returns the current configuration snapshot.
func (s *Settings) Load() config.FacilitatorConfig {
	return *s.cfg.Load()
}

// Store sanitizes cfg and makes it current. Fields that had to fall back to
// their default are logged, never rejected.
func (s *Settings) Store(ctx context.Context, cfg config.FacilitatorConfig) {
	clean, reset := cfg.Sanitize()
	if len(reset) > 0 {
		slog.WarnContext(ctx, "facilitator config values replaced by defaults", "fields", reset)
	}
	s.cfg.Store(&clean)
}

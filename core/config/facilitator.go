package config

import (
	"time"
	_ "time/tzdata"
)

// LimitScope controls whether cooldown, daily cap and probability are tracked
// per (user, community) or per user across all communities.
type LimitScope string

const (
	LimitScopeCommunity LimitScope = "community"
	LimitScopeGlobal    LimitScope = "global"
)

// Documented defaults. Malformed or out-of-range values fall back to these.
const (
	DefaultMinHumanMessages      = 8
	DefaultCooldown              = 10 * time.Minute
	DefaultDailyCap              = 2
	DefaultBaseProbability       = 0.40
	DefaultProbabilityFloor      = 0.10
	DefaultProbabilityDecrement  = 0.10
	DefaultProbabilityRecovery   = 0.10
	DefaultFollowUpWindow        = 30 * time.Minute
	DefaultWindowSize            = 20
	DefaultTimezone              = "America/Sao_Paulo"
	DefaultAIPersonaID           = "ia"
	DefaultAppBridgeMinFrequency = 4
	DefaultGenerationTimeout     = 15 * time.Second

	// Article and app bridges per user per day. Zero disables bridging.
	DefaultMaxDailyBridges = 2
)

// FacilitatorConfig holds the anti-spam thresholds and decision knobs.
type FacilitatorConfig struct {
	MinHumanMessages      int
	Cooldown              time.Duration
	DailyCap              int
	BaseProbability       float64
	ProbabilityFloor      float64
	ProbabilityDecrement  float64
	ProbabilityRecovery   float64
	FollowUpWindow        time.Duration
	WindowSize            int
	Scope                 LimitScope
	Timezone              string
	AIPersonaID           string
	PolicyFile            string
	AppBridge             bool
	AppBridgeMinFrequency int
	GenerationTimeout     time.Duration
	MaxDailyBridges       int

	location *time.Location
}

// DefaultFacilitator returns the documented defaults.
func DefaultFacilitator() FacilitatorConfig {
	cfg := FacilitatorConfig{
		MinHumanMessages:      DefaultMinHumanMessages,
		Cooldown:              DefaultCooldown,
		DailyCap:              DefaultDailyCap,
		BaseProbability:       DefaultBaseProbability,
		ProbabilityFloor:      DefaultProbabilityFloor,
		ProbabilityDecrement:  DefaultProbabilityDecrement,
		ProbabilityRecovery:   DefaultProbabilityRecovery,
		FollowUpWindow:        DefaultFollowUpWindow,
		WindowSize:            DefaultWindowSize,
		Scope:                 LimitScopeCommunity,
		Timezone:              DefaultTimezone,
		AIPersonaID:           DefaultAIPersonaID,
		AppBridgeMinFrequency: DefaultAppBridgeMinFrequency,
		GenerationTimeout:     DefaultGenerationTimeout,
		MaxDailyBridges:       DefaultMaxDailyBridges,
	}
	cfg, _ = cfg.Sanitize()
	return cfg
}

// LoadFacilitator reads FACILITATOR_* variables on top of the defaults.
func LoadFacilitator() FacilitatorConfig {
	d := DefaultFacilitator()
	cfg := FacilitatorConfig{
		MinHumanMessages:      getEnvInt("FACILITATOR_MIN_HUMAN_MESSAGES", d.MinHumanMessages),
		Cooldown:              getEnvDuration("FACILITATOR_COOLDOWN", d.Cooldown),
		DailyCap:              getEnvInt("FACILITATOR_DAILY_CAP", d.DailyCap),
		BaseProbability:       getEnvFloat("FACILITATOR_BASE_PROBABILITY", d.BaseProbability),
		ProbabilityFloor:      getEnvFloat("FACILITATOR_PROBABILITY_FLOOR", d.ProbabilityFloor),
		ProbabilityDecrement:  getEnvFloat("FACILITATOR_PROBABILITY_DECREMENT", d.ProbabilityDecrement),
		ProbabilityRecovery:   getEnvFloat("FACILITATOR_PROBABILITY_RECOVERY", d.ProbabilityRecovery),
		FollowUpWindow:        getEnvDuration("FACILITATOR_FOLLOW_UP_WINDOW", d.FollowUpWindow),
		WindowSize:            getEnvInt("FACILITATOR_WINDOW_SIZE", d.WindowSize),
		Scope:                 LimitScope(getEnv("FACILITATOR_LIMIT_SCOPE", string(d.Scope))),
		Timezone:              getEnv("FACILITATOR_TIMEZONE", d.Timezone),
		AIPersonaID:           getEnv("FACILITATOR_AI_PERSONA_ID", d.AIPersonaID),
		PolicyFile:            getEnv("FACILITATOR_POLICY_FILE", ""),
		AppBridge:             getEnvBool("FACILITATOR_APP_BRIDGE", false),
		AppBridgeMinFrequency: getEnvInt("FACILITATOR_APP_BRIDGE_MIN_FREQUENCY", d.AppBridgeMinFrequency),
		GenerationTimeout:     getEnvDuration("FACILITATOR_GENERATION_TIMEOUT", d.GenerationTimeout),
		MaxDailyBridges:       getEnvInt("FACILITATOR_MAX_DAILY_BRIDGES", d.MaxDailyBridges),
	}
	cfg, _ = cfg.Sanitize()
	return cfg
}

// Sanitize replaces invalid values with their documented default and returns
// the names of the fields it had to reset.
func (c FacilitatorConfig) Sanitize() (FacilitatorConfig, []string) {
	var reset []string
	fix := func(name string, invalid bool, apply func()) {
		if invalid {
			apply()
			reset = append(reset, name)
		}
	}

	fix("min_human_messages", c.MinHumanMessages <= 0, func() { c.MinHumanMessages = DefaultMinHumanMessages })
	fix("cooldown", c.Cooldown < 0, func() { c.Cooldown = DefaultCooldown })
	fix("daily_cap", c.DailyCap <= 0, func() { c.DailyCap = DefaultDailyCap })
	fix("base_probability", !unit(c.BaseProbability), func() { c.BaseProbability = DefaultBaseProbability })
	fix("probability_floor", !unit(c.ProbabilityFloor) || c.ProbabilityFloor > c.BaseProbability, func() {
		c.ProbabilityFloor = min(DefaultProbabilityFloor, c.BaseProbability)
	})
	fix("probability_decrement", c.ProbabilityDecrement <= 0 || c.ProbabilityDecrement > 1, func() { c.ProbabilityDecrement = DefaultProbabilityDecrement })
	fix("probability_recovery", c.ProbabilityRecovery <= 0 || c.ProbabilityRecovery > 1, func() { c.ProbabilityRecovery = DefaultProbabilityRecovery })
	fix("follow_up_window", c.FollowUpWindow <= 0, func() { c.FollowUpWindow = DefaultFollowUpWindow })
	fix("window_size", c.WindowSize <= 0, func() { c.WindowSize = DefaultWindowSize })
	fix("scope", c.Scope != LimitScopeCommunity && c.Scope != LimitScopeGlobal, func() { c.Scope = LimitScopeCommunity })
	fix("ai_persona_id", c.AIPersonaID == "", func() { c.AIPersonaID = DefaultAIPersonaID })
	fix("app_bridge_min_frequency", c.AppBridgeMinFrequency <= 0, func() { c.AppBridgeMinFrequency = DefaultAppBridgeMinFrequency })
	fix("generation_timeout", c.GenerationTimeout <= 0, func() { c.GenerationTimeout = DefaultGenerationTimeout })
	fix("max_daily_bridges", c.MaxDailyBridges < 0, func() { c.MaxDailyBridges = DefaultMaxDailyBridges })

	loc, err := time.LoadLocation(c.Timezone)
	if c.Timezone == "" || err != nil {
		reset = append(reset, "timezone")
		c.Timezone = DefaultTimezone
		if loc, err = time.LoadLocation(DefaultTimezone); err != nil {
			loc = time.Local
		}
	}
	c.location = loc

	return c, reset
}

// Location is the timezone used to scope daily caps to a calendar day.
func (c FacilitatorConfig) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// DayKey formats t as the calendar day it falls on in the configured timezone.
func (c FacilitatorConfig) DayKey(t time.Time) string {
	return t.In(c.Location()).Format(time.DateOnly)
}

// ScopeKey returns the key user limits are stored under for a community.
func (c FacilitatorConfig) ScopeKey(communityID string) string {
	if c.Scope == LimitScopeGlobal {
		return "*"
	}
	return communityID
}

func unit(f float64) bool {
	return f >= 0 && f <= 1
}

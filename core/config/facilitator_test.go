package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/core/config"
)

var _ = Describe("FacilitatorConfig", func() {
	Describe("DefaultFacilitator", func() {
		It("uses the documented anti-spam thresholds", func() {
			cfg := config.DefaultFacilitator()
			Expect(cfg.MinHumanMessages).To(Equal(8))
			Expect(cfg.Cooldown).To(Equal(10 * time.Minute))
			Expect(cfg.DailyCap).To(Equal(2))
			Expect(cfg.BaseProbability).To(BeNumerically("~", 0.40))
			Expect(cfg.ProbabilityFloor).To(BeNumerically("~", 0.10))
			Expect(cfg.Scope).To(Equal(config.LimitScopeCommunity))
			Expect(cfg.MaxDailyBridges).To(Equal(2))
		})
	})

	Describe("Sanitize", func() {
		It("resets malformed values to defaults and reports them", func() {
			cfg := config.DefaultFacilitator()
			cfg.MinHumanMessages = -3
			cfg.BaseProbability = 1.7
			cfg.DailyCap = 0
			cfg.Scope = config.LimitScope("planet")
			cfg.Timezone = "Mars/Olympus"
			cfg.MaxDailyBridges = -1

			fixed, reset := cfg.Sanitize()

			Expect(fixed.MinHumanMessages).To(Equal(config.DefaultMinHumanMessages))
			Expect(fixed.BaseProbability).To(BeNumerically("~", config.DefaultBaseProbability))
			Expect(fixed.DailyCap).To(Equal(config.DefaultDailyCap))
			Expect(fixed.Scope).To(Equal(config.LimitScopeCommunity))
			Expect(fixed.Timezone).To(Equal(config.DefaultTimezone))
			Expect(fixed.MaxDailyBridges).To(Equal(config.DefaultMaxDailyBridges))
			Expect(reset).To(ContainElements("min_human_messages", "base_probability", "daily_cap", "scope", "timezone", "max_daily_bridges"))
		})

		It("keeps the floor at or below the base probability", func() {
			cfg := config.DefaultFacilitator()
			cfg.BaseProbability = 0.05
			cfg.ProbabilityFloor = 0.10

			fixed, _ := cfg.Sanitize()
			Expect(fixed.ProbabilityFloor).To(BeNumerically("<=", fixed.BaseProbability))
		})

		It("leaves valid values untouched", func() {
			_, reset := config.DefaultFacilitator().Sanitize()
			Expect(reset).To(BeEmpty())
		})
	})

	Describe("LoadFacilitator", func() {
		AfterEach(func() {
			os.Unsetenv("FACILITATOR_COOLDOWN")
			os.Unsetenv("FACILITATOR_DAILY_CAP")
			os.Unsetenv("FACILITATOR_LIMIT_SCOPE")
		})

		It("reads overrides from the environment", func() {
			os.Setenv("FACILITATOR_COOLDOWN", "5m")
			os.Setenv("FACILITATOR_DAILY_CAP", "4")
			os.Setenv("FACILITATOR_LIMIT_SCOPE", "global")

			cfg := config.LoadFacilitator()
			Expect(cfg.Cooldown).To(Equal(5 * time.Minute))
			Expect(cfg.DailyCap).To(Equal(4))
			Expect(cfg.Scope).To(Equal(config.LimitScopeGlobal))
		})

		It("falls back to defaults on unparsable values", func() {
			os.Setenv("FACILITATOR_COOLDOWN", "soon")
			os.Setenv("FACILITATOR_DAILY_CAP", "two")

			cfg := config.LoadFacilitator()
			Expect(cfg.Cooldown).To(Equal(config.DefaultCooldown))
			Expect(cfg.DailyCap).To(Equal(config.DefaultDailyCap))
		})

		It("accepts bare seconds for durations", func() {
			os.Setenv("FACILITATOR_COOLDOWN", "90")
			Expect(config.LoadFacilitator().Cooldown).To(Equal(90 * time.Second))
		})
	})

	Describe("ScopeKey and DayKey", func() {
		It("scopes per community by default and globally when configured", func() {
			cfg := config.DefaultFacilitator()
			Expect(cfg.ScopeKey("arena-1")).To(Equal("arena-1"))
			cfg.Scope = config.LimitScopeGlobal
			Expect(cfg.ScopeKey("arena-1")).To(Equal("*"))
		})

		It("computes the calendar day in the configured timezone", func() {
			cfg := config.DefaultFacilitator()
			// 02:00 UTC is still the previous day in Sao Paulo (UTC-3)
			t := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
			Expect(cfg.DayKey(t)).To(Equal("2026-03-09"))
		})
	})
})

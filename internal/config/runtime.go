package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Runtime holds the process-wide tunables that are not part of a
// single Invocation's caller-supplied OrchestrationOptions: inactivity
// thresholds, the permission-prompt default action, and the
// auto-approve-deletion switch. These are the kind of values an
// operator would set once via environment or config file rather than
// per run.
type Runtime struct {
	InitialInactivity time.Duration
	SteadyInactivity  time.Duration
	PromptTimeout     time.Duration
	// PromptTimeoutDefault is the decision applied when an interactive
	// prompt times out: "yes" approves, "no" (the default) denies.
	PromptTimeoutDefault string
	AutoApproveDeletions bool
	AllowAllTools        bool
}

// LoadRuntime reads layered configuration: built-in defaults, then
// ~/.config/tim/config.yaml (or the XDG/APPDATA equivalent), then
// TIM_* environment variables, in increasing priority.
func LoadRuntime() (Runtime, error) {
	v := viper.New()
	v.SetEnvPrefix("TIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("inactivity.initial", 2*time.Minute)
	v.SetDefault("inactivity.steady", 30*time.Minute)
	v.SetDefault("prompt.timeout", 2*time.Minute)
	v.SetDefault("prompt.timeout_default", "no")
	v.SetDefault("auto_approve_deletions", false)
	v.SetDefault("allow_all_tools", false)

	if dir, err := ConfigDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		_ = v.ReadInConfig() // missing file is fine; defaults + env stand
	}

	rt := Runtime{
		InitialInactivity:    v.GetDuration("inactivity.initial"),
		SteadyInactivity:     v.GetDuration("inactivity.steady"),
		PromptTimeout:        v.GetDuration("prompt.timeout"),
		PromptTimeoutDefault: strings.ToLower(v.GetString("prompt.timeout_default")),
		AutoApproveDeletions: v.GetBool("auto_approve_deletions"),
		AllowAllTools:        isTruthyEnv("ALLOW_ALL_TOOLS") || v.GetBool("allow_all_tools"),
	}
	if rt.PromptTimeoutDefault != "yes" {
		rt.PromptTimeoutDefault = "no"
	}
	return rt, nil
}

// isTruthyEnv mirrors the ALLOW_ALL_TOOLS contract: "true" or
// "1" enables the dangerous bypass, read directly (no TIM_ prefix)
// since it's a contract with the environment the agent CLI itself
// understands, not a tim-specific knob.
func isTruthyEnv(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "true" || v == "1"
}

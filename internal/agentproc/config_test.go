package agentproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveModelValid(t *testing.T) {
	assert.Equal(t, "haiku", Config{Model: "haiku"}.resolveModel())
	assert.Equal(t, "opus", Config{Model: "opus"}.resolveModel())
}

func TestResolveModelInvalidFallsBackToDefault(t *testing.T) {
	assert.Equal(t, defaultModel, Config{Model: "gpt-5"}.resolveModel())
	assert.Equal(t, defaultModel, Config{}.resolveModel())
}

func TestInitialInactivityDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, 2*time.Minute, Config{}.initialInactivity())
	assert.Equal(t, 5*time.Minute, Config{InitialInactivity: 5 * time.Minute}.initialInactivity())
}

func TestSteadyInactivityDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Config{}.steadyInactivity())
	assert.Equal(t, time.Hour, Config{SteadyInactivity: time.Hour}.steadyInactivity())
}

package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/models"
)

func message(text string, fromSelf bool) *models.CanonicalMessage {
	return &models.CanonicalMessage{
		ID:             "M1",
		ConversationID: "120363025@g.us",
		SenderID:       "6281234567890@s.whatsapp.net",
		FromSelf:       fromSelf,
		PrimaryType:    "conversation",
		Text:           text,
	}
}

func TestService_NoRulesAllowsEverything(t *testing.T) {
	s, err := NewService(config.FilteringConfig{}, logger.NopLogger())
	require.NoError(t, err)

	assert.True(t, s.Allow(context.Background(), message("anything", true)))
}

func TestService_AllRulesMustPass(t *testing.T) {
	s, err := NewService(config.FilteringConfig{
		Rules: []config.FilterRule{
			{Name: "ignore_self", Expression: `!from_self`, Enabled: true},
			{Name: "groups_only", Expression: `is_group`, Enabled: true},
			{Name: "disabled", Expression: `false`, Enabled: false},
		},
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.Len(t, s.Rules(), 2)

	assert.True(t, s.Allow(context.Background(), message("!ping", false)))
	assert.False(t, s.Allow(context.Background(), message("!ping", true)))

	direct := message("!ping", false)
	direct.ConversationID = "6281234567890@s.whatsapp.net"
	assert.False(t, s.Allow(context.Background(), direct))
}

func TestService_InvalidRuleFailsConstruction(t *testing.T) {
	_, err := NewService(config.FilteringConfig{
		Rules: []config.FilterRule{{Name: "bad", Expression: `size(text)`, Enabled: true}},
	}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestService_EvaluationErrorFallback(t *testing.T) {
	rules := []config.FilterRule{{Name: "numeric", Expression: `int(text) > 0`, Enabled: true}}

	tests := []struct {
		name    string
		onError string
		want    bool
	}{
		{name: "allow", onError: constants.FallbackAllow, want: true},
		{name: "deny", onError: constants.FallbackDeny, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.FilteringConfig{Rules: rules}
			cfg.Fallback.OnError = tt.onError

			s, err := NewService(cfg, logger.NopLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Allow(context.Background(), message("not a number", false)))
		})
	}
}

func TestService_LoadRulesKeepsCurrentOnError(t *testing.T) {
	s, err := NewService(config.FilteringConfig{
		Rules: []config.FilterRule{{Name: "ignore_self", Expression: `!from_self`, Enabled: true}},
	}, logger.NopLogger())
	require.NoError(t, err)

	err = s.LoadRules(context.Background(), []config.FilterRule{{Expression: `nope(`, Enabled: true}})
	require.Error(t, err)
	require.Len(t, s.Rules(), 1)
	assert.Equal(t, "ignore_self", s.Rules()[0].Name)
}

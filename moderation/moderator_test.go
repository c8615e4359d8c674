package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator([]string{"scammer", "fraud", "idiot"}, DefaultCensoredChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Word inside a sentence",
			input:    "The supplier is a fraud",
			expected: "The supplier is a *****",
			words:    []string{"fraud"},
		},
		{
			name:     "Repeated word keeps spacing",
			input:    "fraud fraud",
			expected: "***** *****",
			words:    []string{"fraud", "fraud"},
		},
		{
			name:     "Leet speak",
			input:    "Total $c4mm3r here",
			expected: "Total ******* here",
			words:    []string{"scammer"},
		},
		{
			name:     "Dotted capitals",
			input:    "F.R.A.U.D on RFQ-1",
			expected: "********* on RFQ-1",
			words:    []string{"fraud"},
		},
		{
			name:     "Accented text and trailing comma",
			input:    "Un fournisseur idiot, vraiment",
			expected: "Un fournisseur *****, vraiment",
			words:    []string{"idiot"},
		},
		{
			name:     "Nothing to censor",
			input:    "Quote for RFQ-8F3A is ready",
			expected: "Quote for RFQ-8F3A is ready",
		},
		{
			name: "Empty content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			require.Equal(t, tt.expected, content)
			require.Equal(t, tt.words, words)
		})
	}
}

func TestModerator_PunctuationPatterns(t *testing.T) {
	req := require.New(t)

	// Given a dictionary polluted with punctuation only entries
	mod, err := NewModerator([]string{"...", ",,,", "", "fraud"}, DefaultCensoredChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// Then real words are still censored
	content, words := mod.Censor("This is not fraud")
	req.Equal("This is not *****", content)
	req.Equal([]string{"fraud"}, words)

	// And punctuation in messages is left alone
	content, words = mod.Censor("Any update ...")
	req.Equal("Any update ...", content)
	req.Nil(words)
}

func TestModerator_Review(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"scammer"}, DefaultCensoredChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	verdict := mod.Review("Your supplier is a scammer, do not pay the invoice before delivery")

	req.True(verdict.Censored())
	req.Equal([]string{"scammer"}, verdict.Words)
	req.Equal("Your supplier is a *******, do not pay the invoice before delivery", verdict.Content)
	req.Equal("en", verdict.Language)
}

func TestModerator_NoPatterns(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"...", ""}, DefaultCensoredChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	content, words := mod.Censor("anything goes")

	req.Equal("anything goes", content)
	req.Nil(words)
}

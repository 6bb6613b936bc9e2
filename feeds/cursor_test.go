package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressfeed/models"
)

func TestCursorRoundtrip(t *testing.T) {
	sub := models.NewSubscription([]string{"food", "tech"})
	sig := subscriptionSignature(sub)

	original := cursor{Sig: sig, Fence: 42, ScoredAt: 1700000000, Score: 1.5, LastId: 7}
	decoded, err := decodeCursor(encodeCursor(original), sig)

	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCursorRejected(t *testing.T) {
	sig := subscriptionSignature(models.NewSubscription([]string{"food"}))
	valid := encodeCursor(cursor{Sig: sig, Fence: 1, ScoredAt: 1700000000})

	tests := []struct {
		name  string
		token string
		sig   string
	}{
		{
			name:  "garbage token",
			token: "not a cursor",
			sig:   sig,
		},
		{
			name:  "valid base64, not json",
			token: "aGVsbG8",
			sig:   sig,
		},
		{
			name:  "subscription changed between calls",
			token: valid,
			sig:   subscriptionSignature(models.NewSubscription([]string{"food", "tech"})),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCursor(tt.token, tt.sig)
			assert.ErrorIs(t, err, models.ErrInvalidCursor)
		})
	}
}

func TestSubscriptionSignature(t *testing.T) {
	// Stable regardless of construction order
	a := subscriptionSignature(models.Subscription{"food": 1, "tech": 2})
	b := subscriptionSignature(models.Subscription{"tech": 2, "food": 1})
	assert.Equal(t, a, b)

	// Sensitive to both membership and weights
	assert.NotEqual(t, a, subscriptionSignature(models.Subscription{"food": 1}))
	assert.NotEqual(t, a, subscriptionSignature(models.Subscription{"food": 1, "tech": 3}))
}

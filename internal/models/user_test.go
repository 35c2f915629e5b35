package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceToken_Complete(t *testing.T) {
	tests := []struct {
		name string
		tok  SourceToken
		want bool
	}{
		{"all fields", SourceToken{UserID: "1", PassToken: "p", SSecurity: "s"}, true},
		{"missing userId", SourceToken{PassToken: "p", SSecurity: "s"}, false},
		{"missing passToken", SourceToken{UserID: "1", SSecurity: "s"}, false},
		{"missing ssecurity", SourceToken{UserID: "1", PassToken: "p"}, false},
		{"empty", SourceToken{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tok.Complete())
		})
	}
}

func TestUser_Actionable(t *testing.T) {
	tok := SourceToken{UserID: "1", PassToken: "p", SSecurity: "s"}

	t.Run("complete user", func(t *testing.T) {
		u := &User{Username: "alice", Token: tok}
		assert.True(t, u.Actionable())
	})

	t.Run("no username", func(t *testing.T) {
		u := &User{Token: tok}
		assert.False(t, u.Actionable())
	})

	t.Run("incomplete token", func(t *testing.T) {
		u := &User{Username: "alice", Token: SourceToken{UserID: "1"}}
		assert.False(t, u.Actionable())
	})
}

func TestUser_ScaleModel_Default(t *testing.T) {
	u := &User{Username: "alice"}
	assert.Equal(t, DefaultScaleModel, u.ScaleModel())

	u.Model = "xiaomi.scales.ms200"
	assert.Equal(t, "xiaomi.scales.ms200", u.ScaleModel())
}

func TestUser_MarshalKeepsGarminBlock(t *testing.T) {
	// The garmin block is always serialized, even when empty, so operators
	// editing users.json see the full field layout.
	b, err := json.Marshal(&User{Username: "alice"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"garmin"`)
}

func TestMeasurement_Valid(t *testing.T) {
	m := &Measurement{Timestamp: time.Now(), Weight: 70.5}
	assert.True(t, m.Valid())

	assert.False(t, (&Measurement{Weight: 70.5}).Valid())
	assert.False(t, (&Measurement{Timestamp: time.Now()}).Valid())
}

package steamid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "legacy universe 1", in: "STEAM_1:1:66138017", want: "76561198092541763"},
		{name: "legacy universe 0", in: "STEAM_0:1:66138017", want: "76561198092541763"},
		{name: "steam3 bracketed", in: "[U:1:132276035]", want: "76561198092541763"},
		{name: "steam3 bare", in: "U:1:132276035", want: "76561198092541763"},
		{name: "steamid64", in: "76561198092541763", want: "76561198092541763"},
		{name: "account id", in: "132276035", want: "76561198092541763"},
		{name: "surrounding whitespace", in: "  STEAM_1:1:66138017 ", want: "76561198092541763"},
		{name: "empty", in: "", wantErr: true},
		{name: "bot", in: "BOT", wantErr: true},
		{name: "garbage", in: "STEAM_9:3:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFormatsAgree(t *testing.T) {
	a, err := Normalize("STEAM_1:0:4491990")
	require.NoError(t, err)
	b, err := Normalize("[U:1:8983980]")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("BOT"))
	assert.True(t, IsBot("bot"))
	assert.False(t, IsBot("STEAM_1:0:1"))
}

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		maxLen  int
		want    string
		wantErr error
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "trimmed", in: "  bob \t", want: "bob"},
		{name: "empty", in: "", wantErr: ErrUsernameEmpty},
		{name: "whitespace only", in: "   ", wantErr: ErrUsernameEmpty},
		{name: "at limit", in: strings.Repeat("a", MaxUsernameLen), want: strings.Repeat("a", MaxUsernameLen)},
		{name: "over limit", in: strings.Repeat("a", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
		{name: "counts runes", in: "ёжик", maxLen: 4, want: "ёжик"},
		{name: "custom limit", in: "alice", maxLen: 3, wantErr: ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.in, tt.maxLen)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUser(t *testing.T) {
	u, err := NewUser("sid-1", " carol ", 0)
	require.NoError(t, err)
	assert.Equal(t, User{ID: "sid-1", Name: "carol"}, u)

	_, err = NewUser("sid-2", "", 0)
	assert.ErrorIs(t, err, ErrUsernameEmpty)
}

func TestDerivedRoomName(t *testing.T) {
	assert.Equal(t, RoomName("alice's room"), DerivedRoomName("alice"))
}

package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{
			name:     "Valid username",
			username: "valid_user-123",
			wantErr:  false,
		},
		{
			name:     "Minimum length",
			username: "bob",
			wantErr:  false,
		},
		{
			name:     "Too short",
			username: "ab",
			wantErr:  true,
		},
		{
			name:     "Long names are allowed",
			username: strings.Repeat("a", 64),
			wantErr:  false,
		},
		{
			name:     "Invalid characters",
			username: "user@name",
			wantErr:  true,
		},
		{
			name:     "Space not allowed",
			username: "user name",
			wantErr:  true,
		},
		{
			name:     "Path traversal",
			username: "../etc",
			wantErr:  true,
		},
		{
			name:     "HTML tags",
			username: "<script>alert(1)</script>",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"al-ice_2", "al-ice_2"},
		{"../../etc/passwd", "etcpasswd"},
		{"a b/c\\d", "abcd"},
		{"名字", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeUsername(tt.in))
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, appErr := HashPassword("s3cret", bcrypt.MinCost)
	require.Nil(t, appErr)

	assert.True(t, IsPasswordHash(hash))
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestCheckPassword_Plaintext(t *testing.T) {
	assert.False(t, IsPasswordHash("admin"))
	assert.True(t, CheckPassword("admin", "admin"))
	assert.False(t, CheckPassword("admin", "Admin"))
}

func TestIsPasswordHash_Prefixes(t *testing.T) {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		assert.True(t, IsPasswordHash(prefix+"10$abcdefghijklmnopqrstuv"), prefix)
	}
	assert.False(t, IsPasswordHash("$1$md5style"))
}

func TestNewBookmarkID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewBookmarkID(now)

	assert.Regexp(t, regexp.MustCompile(`^1700000000123[0-9a-z]{5}$`), id)
	assert.NotEqual(t, id, NewBookmarkID(now), "random suffix should differ")
	assert.Equal(t, "1700000000123", NewGroupID(now))
}

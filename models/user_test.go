package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile(t *testing.T) {
	u := &User{ID: 42, Email: "ada@example.com", HashedPassword: []byte("secret")}

	b, err := json.Marshal(u.Profile())
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"42","email":"ada@example.com"}`, string(b))
}

func TestAuthResponse(t *testing.T) {
	profile := (&User{ID: 7, Email: "a@b.co"}).Profile()

	b, err := json.Marshal(AuthResponse{AccessToken: "tok", UserProfile: &profile})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"tok","user_id":"7","email":"a@b.co"}`, string(b))

	b, err = json.Marshal(AuthResponse{AccessToken: "tok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"tok"}`, string(b))
}

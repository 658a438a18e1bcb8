package syncstore

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"

	"github.com/stretchr/testify/assert"
)

func TestIsAnonymous(t *testing.T) {
	store, _ := makeTestStore(t, Config{})
	requireReady(t, store)

	for _, p := range []struct {
		authorized, incognitoSetting, incognitoWindow, expected bool
	}{
		{false, false, true, false},
		{true, false, false, false},
		{true, false, true, true},
		{true, true, true, false},
	} {
		Set(store, Authorized, p.authorized)
		Set(store, Incognito, p.incognitoSetting)
		assert.Equal(t, p.expected, IsAnonymous(store, p.incognitoWindow), "%+v", p)
	}
}

func TestSetAccessToken(t *testing.T) {
	store, _ := makeTestStore(t, Config{})
	requireReady(t, store)

	t.Run("default lifetime", func(t *testing.T) {
		before := ldtime.UnixMillisNow()
		SetAccessToken(store, "tok1", 0)
		after := ldtime.UnixMillisNow()

		assert.Equal(t, "tok1", Get(store, AccessToken))
		validUntil := Get(store, ValidUntil)
		hour := ldtime.UnixMillisecondTime(time.Hour.Milliseconds())
		assert.GreaterOrEqual(t, uint64(validUntil), uint64(before+hour))
		assert.LessOrEqual(t, uint64(validUntil), uint64(after+hour))
	})

	t.Run("explicit lifetime", func(t *testing.T) {
		before := ldtime.UnixMillisNow()
		SetAccessToken(store, "tok2", time.Minute)
		validUntil := Get(store, ValidUntil)
		assert.GreaterOrEqual(t, uint64(validUntil), uint64(before)+60000)
		assert.Less(t, uint64(validUntil), uint64(before)+120000)
	})
}

func TestAccessTokenExpired(t *testing.T) {
	store, _ := makeTestStore(t, Config{})
	requireReady(t, store)

	Set(store, ValidUntil, 1000)
	assert.False(t, AccessTokenExpired(store, 2000), "not authorized")

	Set(store, Authorized, true)
	assert.True(t, AccessTokenExpired(store, 2000))
	assert.False(t, AccessTokenExpired(store, 500))
}

func TestCredentials(t *testing.T) {
	store, _ := makeTestStore(t, Config{})
	requireReady(t, store)

	assert.False(t, HasCredentials(store))
	Set(store, Authorized, true)
	Set(store, Username, "someone")
	Set(store, RefreshToken, "r")
	SetAccessToken(store, "a", 0)
	assert.True(t, HasCredentials(store))

	SetUnauthorized(store)
	assert.False(t, HasCredentials(store))
	assert.False(t, Get(store, Authorized))
	assert.False(t, IsSet(store, Username))
	assert.False(t, IsSet(store, RefreshToken))
	assert.False(t, IsSet(store, AccessToken))
	assert.True(t, IsSet(store, ValidUntil))
}

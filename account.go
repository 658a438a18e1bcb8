package syncstore

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// DefaultTokenLifetime is the access token lifetime assumed by SetAccessToken when none is given.
const DefaultTokenLifetime = time.Hour

// IsAnonymous reports whether an upload made from a window should be anonymous: that is the case
// for a private window of an authorized account, unless the user has opted into uploading to
// their account from private windows.
//
// It panics with NotReadyError if the store is not ready.
func IsAnonymous(s *Store, incognitoWindow bool) bool {
	return Get(s, Authorized) && incognitoWindow && !Get(s, Incognito)
}

// SetAccessToken stores a new access token together with its expiry time. If expiresIn is zero or
// negative, DefaultTokenLifetime is used.
//
// It panics with NotReadyError if the store is not ready.
func SetAccessToken(s *Store, token string, expiresIn time.Duration) {
	if expiresIn <= 0 {
		expiresIn = DefaultTokenLifetime
	}
	Set(s, AccessToken, token)
	Set(s, ValidUntil, ldtime.UnixMillisNow()+ldtime.UnixMillisecondTime(expiresIn.Milliseconds()))
}

// AccessTokenExpired reports whether the account is authorized but its access token is no longer
// valid at the given time.
//
// It panics with NotReadyError if the store is not ready.
func AccessTokenExpired(s *Store, now ldtime.UnixMillisecondTime) bool {
	return Get(s, Authorized) && Get(s, ValidUntil) < now
}

// HasCredentials reports whether the store holds everything needed to act on behalf of an account.
//
// It panics with NotReadyError if the store is not ready.
func HasCredentials(s *Store) bool {
	return Get(s, Authorized) && Get(s, AccessToken) != "" && Get(s, RefreshToken) != "" &&
		Get(s, Username) != ""
}

// SetUnauthorized forgets the account: it clears the authorization flag, the user name and both
// tokens.
//
// It panics with NotReadyError if the store is not ready.
func SetUnauthorized(s *Store) {
	Set(s, Authorized, false)
	Clear(s, Username)
	Clear(s, RefreshToken)
	Clear(s, AccessToken)
}

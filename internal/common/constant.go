package common

// AuthorizationHeader carries the bearer credential on outbound API requests.
const AuthorizationHeader = "Authorization"

// BearerScheme is the authorization scheme used by the DrinkShelf API.
const BearerScheme = "Bearer"

// BearerValue formats token as an Authorization header value.
func BearerValue(token string) string {
	return BearerScheme + " " + token
}

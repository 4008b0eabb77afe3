package auth

// Provider supplies the bearer token used by the API client.
// *TokenStore satisfies this interface.
type Provider interface {
	AuthToken() string
	AuthHeaders() map[string]string
}

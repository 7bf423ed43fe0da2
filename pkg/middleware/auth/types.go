package auth

type Role struct {
	Name string `json:"name"`
}

type AuthenticationSource struct {
	Provider string `json:"provider"`
}

type User struct {
	Username             string               `json:"username"`
	AuthenticationSource AuthenticationSource `json:"authenticationSource"`
	Role                 Role                 `json:"role"`
}

// Authentication providers recorded on User.AuthenticationSource.
const (
	ProviderAssertion = "assert"
	ProviderSession   = "session"
	ProviderToken     = "token"
)

type contextKey struct{ name string }

var userCtxKey = &contextKey{"user"}

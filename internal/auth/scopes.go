package auth

// Scopes understood by the streak service.
const (
	ScopeStreaksWrite = "streaks:write"
	ScopeStreaksRead  = "streaks:read"
)

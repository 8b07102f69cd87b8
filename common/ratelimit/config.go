package ratelimit

// DefaultWindowSeconds is the counting window for acquisition limits
const DefaultWindowSeconds = 60

// Limits holds the configured acquisition quotas per window
type Limits struct {
	Global int64 // All callers combined
	User   int64 // Per caller identity
}

// DefaultLimits are used when configuration leaves a quota unset
var DefaultLimits = Limits{
	Global: 60,
	User:   10,
}

// Normalize fills zero or negative quotas from DefaultLimits
func (l Limits) Normalize() Limits {
	if l.Global <= 0 {
		l.Global = DefaultLimits.Global
	}
	if l.User <= 0 {
		l.User = DefaultLimits.User
	}
	return l
}

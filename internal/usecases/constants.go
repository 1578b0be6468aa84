package usecases

import "time"

// Key generation
const (
	DefaultKeyTemplate      = "****-****-****-****"
	FallbackKeyLength       = 16
	DefaultGenerateMax      = 100
	DefaultCollisionRetries = 10
	keyWildcard             = '*'
)

// Character classes. Lowercase is always part of the charset; the other
// classes are added on top when enabled.
const (
	lowercaseChars   = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars       = "0123456789"
	specialChars     = "!@#$%^&*"
	fallbackAlphabet = lowercaseChars + uppercaseChars + digitChars
)

// Application ids are hex encoded from appIDBytes random bytes
const (
	appIDBytes       = 12
	appIDMaxAttempts = 5
	dayDuration      = 24 * time.Hour
)

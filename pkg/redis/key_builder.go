package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Election status key builders

func (kb *KeyBuilder) KeyClassStatus(classID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyClassStatus, classID))
}

func (kb *KeyBuilder) KeyClassUpdates(classID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyClassUpdates, classID))
}

// Voting key builders

func (kb *KeyBuilder) KeyVoterVoted(classID, voterID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVoterVoted, classID, voterID))
}

func (kb *KeyBuilder) KeyTally(classID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTally, classID))
}

func (kb *KeyBuilder) KeyVoteIdem(classID, voterID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVoteIdem, classID, voterID))
}

// KeyClassVoterPattern matches every per-voter key of a class, used by reset.
func (kb *KeyBuilder) KeyClassVoterPattern(classID string) string {
	return kb.BuildKey(fmt.Sprintf("election:%s:voter:*", classID))
}

// KeyClassIdemPattern matches every idempotency guard of a class, used by
// reset so a voter from the closing cycle is not locked out of the next one.
func (kb *KeyBuilder) KeyClassIdemPattern(classID string) string {
	return kb.BuildKey(fmt.Sprintf("election:%s:idem:*", classID))
}

// KeyCustom builds a key from an arbitrary pattern
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	key := fmt.Sprintf(pattern, args...)
	return kb.BuildKey(key)
}

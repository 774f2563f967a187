package authz

import (
	"crypto/sha256"
	"crypto/subtle"
)

// StaticAPIKey validates tokens against a single pre-shared key. Only the
// digest is kept.
type StaticAPIKey struct {
	hash [sha256.Size]byte
	set  bool
}

func NewStaticAPIKey(key string) *StaticAPIKey {
	if key == "" {
		return &StaticAPIKey{}
	}
	return &StaticAPIKey{hash: sha256.Sum256([]byte(key)), set: true}
}

func (k *StaticAPIKey) ValidateAPIKey(token string) bool {
	if !k.set || token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(sum[:], k.hash[:]) == 1
}

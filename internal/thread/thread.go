// Package thread assigns conversation identifiers. The gateway keeps no
// state between requests; a thread id is only a correlation token the caller
// must send back with every request of the same conversation.
package thread

import (
	"github.com/google/uuid"
)

// Resolve returns candidate unchanged when it is non-empty, otherwise a
// freshly minted identifier. Caller-supplied ids are trusted as opaque tokens.
func Resolve(candidate string) string {
	if candidate != "" {
		return candidate
	}
	return uuid.New().String()
}

package identifier

import (
	"strings"

	"github.com/google/uuid"
)

// New creates a random identifier with a stable prefix, e.g. "lst_3f2c...".
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HasPrefix reports whether id was minted by New with the given prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_") && len(id) > len(prefix)+1
}

package node

import (
	"fmt"
	"regexp"
)

// nameRE is the identifier policy shared by node, graph, and workflow ids:
// starts with a letter, then letters/digits/dash/underscore, matching the
// corpus's convention for addressable names (session/node ids used as
// both map keys and, eventually, path segments under internal/history).
var nameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// ValidateName enforces the identifier policy for a named entity of the
// given kind (used in the error message only — "session", "node",
// "graph", "workflow"). internal/session applies it to every session,
// node, graph and workflow id it registers, so those ids follow one rule.
func ValidateName(name, kind string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid %s id %q: must start with a letter and contain only letters, digits, '-', '_' (max 64 chars)", kind, name)
	}
	return nil
}

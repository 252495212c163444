package orchestrator

import (
	"regexp"
	"strings"
)

// Case-sensitive; the argument list is everything up to the final ")"
var invocationPattern = regexp.MustCompile(`^(\w+)(?:\((.*?)\))?$`)

// ParseToolInvocation matches `name` or `name(arg1, arg2, ...)` against the
// whole trimmed text. Parameters are comma-split and trimmed. Text that does
// not match yields the zero ToolInvocation.
func ParseToolInvocation(text string) ToolInvocation {
	trimmed := strings.TrimSpace(text)
	loc := invocationPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return ToolInvocation{}
	}

	inv := ToolInvocation{Name: trimmed[loc[2]:loc[3]], Params: []string{}}
	if loc[4] >= 0 {
		for _, p := range strings.Split(trimmed[loc[4]:loc[5]], ",") {
			inv.Params = append(inv.Params, strings.TrimSpace(p))
		}
	}
	return inv
}

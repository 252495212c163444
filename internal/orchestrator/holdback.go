package orchestrator

import (
	"regexp"
	"strings"
)

var (
	bareNamePattern = regexp.MustCompile(`^\w+$`)
	openCallPattern = regexp.MustCompile(`^(\w+)\([^\n]*$`)
)

// roundBuffer decides per fragment whether a round can still turn into a
// tool invocation. While it can, fragments are held back; once it cannot,
// held fragments are released in order and the rest pass straight through.
type roundBuffer struct {
	text      strings.Builder
	held      []string
	streaming bool
	toolNames []string
}

func newRoundBuffer(toolNames []string) *roundBuffer {
	return &roundBuffer{toolNames: toolNames}
}

// push records a fragment and returns the fragments now safe to deliver
func (b *roundBuffer) push(fragment string) []string {
	b.text.WriteString(fragment)
	if b.streaming {
		return []string{fragment}
	}

	b.held = append(b.held, fragment)
	if mayBecomeInvocation(b.text.String(), b.toolNames) {
		return nil
	}

	b.streaming = true
	released := b.held
	b.held = nil
	return released
}

// finish returns the held fragments to deliver once the round has ended.
// A round that turned out to be a tool invocation delivers nothing.
func (b *roundBuffer) finish(invocation bool) []string {
	released := b.held
	b.held = nil
	if invocation {
		return nil
	}
	return released
}

// Text is the raw text of the round so far
func (b *roundBuffer) Text() string {
	return b.text.String()
}

// mayBecomeInvocation reports whether appending more text could still make
// the round parse as a call to one of names.
func mayBecomeInvocation(text string, names []string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	if bareNamePattern.MatchString(trimmed) {
		for _, name := range names {
			if strings.HasPrefix(name, trimmed) {
				return true
			}
		}
		return false
	}

	if m := openCallPattern.FindStringSubmatch(trimmed); m != nil {
		for _, name := range names {
			if name == m[1] {
				return true
			}
		}
	}
	return false
}

package server

import (
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

// Matcher answers every request for Command whose query carries all of
// Required with the Fixture text
type Matcher struct {
	Command  protocol.Command
	Required protocol.Query
	Fixture  string
}

// NewMatcher creates a matcher; required is copied
func NewMatcher(cmd protocol.Command, required protocol.Query, fixtureName string) Matcher {
	return Matcher{
		Command:  cmd,
		Required: required.Clone(),
		Fixture:  fixtureName,
	}
}

// Matches reports whether req has the matcher's command and every required
// parameter with an equal value. A missing parameter does not match.
func (m Matcher) Matches(req *protocol.Request) bool {
	if req.Command != m.Command {
		return false
	}
	for k, v := range m.Required {
		got, ok := req.Query[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

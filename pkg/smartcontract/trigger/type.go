// Package trigger enumerates the contexts under which a script may execute
// (§4.4, §C): transaction verification, application execution, and the
// per-block OnPersist/PostPersist native hooks.
package trigger

import "fmt"

// Type identifies the execution context.
type Type byte

// Trigger values, matching the reference VM's byte encoding.
const (
	OnPersist   Type = 0x01
	PostPersist Type = 0x02
	Verification Type = 0x20
	Application Type = 0x40
	All         = OnPersist | PostPersist | Verification | Application
)

var names = map[Type]string{
	OnPersist:    "OnPersist",
	PostPersist:  "PostPersist",
	Verification: "Verification",
	Application:  "Application",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Trigger(%#x)", byte(t))
}

// FromString parses a trigger name back to its Type.
func FromString(s string) (Type, error) {
	for t, n := range names {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger type: %s", s)
}

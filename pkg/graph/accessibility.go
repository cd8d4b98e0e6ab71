package graph

import (
	"fmt"
	"strings"
)

// AccessLevel is an ordered access-control level. Higher values are broader.
type AccessLevel int8

const (
	AccessUnknown AccessLevel = iota
	AccessPrivate
	AccessFilePrivate
	AccessInternal
	AccessPublic
	AccessOpen
)

var accessLevelNames = map[AccessLevel]string{
	AccessUnknown:     "unknown",
	AccessPrivate:     "private",
	AccessFilePrivate: "fileprivate",
	AccessInternal:    "internal",
	AccessPublic:      "public",
	AccessOpen:        "open",
}

// String returns the keyword spelling of the level.
func (a AccessLevel) String() string {
	if name, ok := accessLevelNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAccessLevel converts a keyword into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private":
		return AccessPrivate, nil
	case "fileprivate":
		return AccessFilePrivate, nil
	case "internal", "":
		return AccessInternal, nil
	case "public", "package":
		return AccessPublic, nil
	case "open":
		return AccessOpen, nil
	default:
		return AccessUnknown, fmt.Errorf("unknown access level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a AccessLevel) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccessLevel) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*a = AccessUnknown
		return nil
	}
	level, err := ParseAccessLevel(string(text))
	if err != nil {
		return err
	}
	*a = level
	return nil
}

// Accessibility is an access level plus whether it was written in source.
type Accessibility struct {
	Level    AccessLevel `json:"level"`
	Explicit bool        `json:"explicit"`
}

// DefaultAccessibility is the inferred internal level.
func DefaultAccessibility() Accessibility {
	return Accessibility{Level: AccessInternal}
}

// IsAccessibleOutsideModule reports whether the level is public or open.
func (a Accessibility) IsAccessibleOutsideModule() bool {
	return a.Level >= AccessPublic
}

func (a Accessibility) String() string {
	if a.Explicit {
		return a.Level.String()
	}
	return a.Level.String() + " (inferred)"
}

// MinAccessLevel returns the narrower of two levels, ignoring unknown values.
func MinAccessLevel(a, b AccessLevel) AccessLevel {
	if a == AccessUnknown {
		return b
	}
	if b == AccessUnknown || a < b {
		return a
	}
	return b
}

// MaxAccessLevel returns the broader of two levels.
func MaxAccessLevel(a, b AccessLevel) AccessLevel {
	if a > b {
		return a
	}
	return b
}

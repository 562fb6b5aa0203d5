package tenant

import (
	"fmt"
	"strings"
)

// DestinationMode decides who chooses the ClickUp list and token for a lead.
type DestinationMode string

const (
	// ModeFixed ignores tenant destinations; every lead goes to the default list.
	ModeFixed DestinationMode = "fixed"
	// ModeAllowlist lets the client name a list, which must belong to a known
	// tenant. Tokens never leave the server.
	ModeAllowlist DestinationMode = "allowlist"
	// ModePassthrough trusts the list and token the client sends.
	ModePassthrough DestinationMode = "passthrough"
)

// ParseDestinationMode parses a mode name. Empty means allowlist.
func ParseDestinationMode(v string) (DestinationMode, error) {
	switch mode := DestinationMode(strings.ToLower(strings.TrimSpace(v))); mode {
	case "":
		return ModeAllowlist, nil
	case ModeFixed, ModeAllowlist, ModePassthrough:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown destination mode %q", ErrInvalidConfig, v)
	}
}

// internal/domain/attendance/status.go
package attendance

import (
	"fmt"
	"sort"
	"strings"
)

type Status string

const (
	StatusActive           Status = "active"
	StatusLoggedOut        Status = "logged_out"
	StatusAutoLoggedOut    Status = "auto_logged_out"
	StatusExpired          Status = "expired"
	StatusHeartbeatTimeout Status = "heartbeat_timeout"
	StatusSuspect          Status = "suspect"
)

// AllStatuses lists the closed status enum in lifecycle order.
var AllStatuses = []Status{
	StatusActive,
	StatusSuspect,
	StatusLoggedOut,
	StatusAutoLoggedOut,
	StatusExpired,
	StatusHeartbeatTimeout,
}

// LiveStatuses are the statuses of a session that still counts as logged in.
var LiveStatuses = []Status{StatusActive, StatusSuspect}

// TerminalStatuses never change again once reached.
var TerminalStatuses = []Status{
	StatusLoggedOut,
	StatusAutoLoggedOut,
	StatusExpired,
	StatusHeartbeatTimeout,
}

func (s Status) Valid() bool {
	for _, k := range AllStatuses {
		if s == k {
			return true
		}
	}
	return false
}

func (s Status) IsLive() bool {
	return s == StatusActive || s == StatusSuspect
}

func (s Status) IsTerminal() bool {
	return s.Valid() && !s.IsLive()
}

// statusAliases maps accepted query tokens, already lowercased with '-' and
// ' ' folded into '_', to one or more statuses.
var statusAliases = map[string][]Status{
	"active":            {StatusActive},
	"suspect":           {StatusSuspect},
	"logged_out":        {StatusLoggedOut},
	"loggedout":         {StatusLoggedOut},
	"logout":            {StatusLoggedOut},
	"auto_logged_out":   {StatusAutoLoggedOut},
	"autologgedout":     {StatusAutoLoggedOut},
	"auto_logout":       {StatusAutoLoggedOut},
	"auto":              {StatusAutoLoggedOut},
	"expired":           {StatusExpired},
	"heartbeat_timeout": {StatusHeartbeatTimeout},
	"timeout":           {StatusHeartbeatTimeout},
	"live":              LiveStatuses,
	"closed":            TerminalStatuses,
	"all":               AllStatuses,
}

// StatusSet is a deduplicated set of statuses in enum order.
type StatusSet []Status

func (ss StatusSet) Contains(s Status) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Strings returns the raw values, for store filters.
func (ss StatusSet) Strings() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// ParseStatus parses a single status token, accepting the same aliases as
// ParseStatusSet as long as the alias names exactly one status.
func ParseStatus(raw string) (Status, error) {
	set, err := ParseStatusSet(raw)
	if err != nil {
		return "", err
	}
	if len(set) != 1 {
		return "", fmt.Errorf("%w: %q names more than one status", ErrUnknownStatus, raw)
	}
	return set[0], nil
}

// ParseStatusSet parses a comma separated, case-insensitive list of status
// tokens. Empty input yields an empty set. Any unrecognized token is an error.
func ParseStatusSet(raw string) (StatusSet, error) {
	seen := make(map[Status]bool)
	for _, tok := range strings.Split(raw, ",") {
		key := normalizeStatusToken(tok)
		if key == "" {
			continue
		}
		statuses, ok := statusAliases[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, strings.TrimSpace(tok))
		}
		for _, s := range statuses {
			seen[s] = true
		}
	}

	set := make(StatusSet, 0, len(seen))
	for s := range seen {
		set = append(set, s)
	}
	sort.Slice(set, func(i, j int) bool { return statusOrder(set[i]) < statusOrder(set[j]) })
	return set, nil
}

func normalizeStatusToken(tok string) string {
	tok = strings.ToLower(strings.TrimSpace(tok))
	return strings.NewReplacer("-", "_", " ", "_").Replace(tok)
}

func statusOrder(s Status) int {
	for i, v := range AllStatuses {
		if v == s {
			return i
		}
	}
	return len(AllStatuses)
}

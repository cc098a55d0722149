// Package session implements the multi-account browser session: an ordered
// set of authenticated identities addressable by position, plus the
// encrypted known-accounts cookie used to pre-fill account switching.
package session

import (
	"strings"
)

// AccountsSeparator joins usernames in the known-accounts cookie.
const AccountsSeparator = ";"

// Identity is one authenticated account inside a session cookie.
type Identity struct {
	UserName      string `json:"userName"`
	UserID        string `json:"userId"`
	SecurityStamp string `json:"securityStamp"`
}

// Principal is the ordered identity set carried by the session cookie.
// Positions are stable: the "authuser" index addresses one account without
// disturbing the others.
type Principal struct {
	Identities []Identity `json:"identities"`
}

// At returns the identity at index. Out-of-range indexes fall back to the
// first identity, mirroring how an omitted authuser parameter selects the
// primary account.
func (p Principal) At(index int) (Identity, bool) {
	if len(p.Identities) == 0 {
		return Identity{}, false
	}
	if index < 0 || index >= len(p.Identities) {
		return p.Identities[0], true
	}
	return p.Identities[index], true
}

// Merge returns a new identity set where any existing identity with the
// same name as fresh is replaced in place, other identities are kept
// unchanged, and fresh is appended when no name matched. Identities without
// a name are discarded.
func Merge(existing []Identity, fresh Identity) []Identity {
	merged := make([]Identity, 0, len(existing)+1)
	replaced := false

	for _, id := range existing {
		if id.UserName == "" {
			continue
		}
		if id.UserName == fresh.UserName {
			merged = append(merged, fresh)
			replaced = true
		} else {
			merged = append(merged, id)
		}
	}
	if !replaced {
		merged = append(merged, fresh)
	}
	return merged
}

// Remember appends userName to the known-accounts list iff it is not
// already present. Ordering of existing entries is preserved.
func Remember(accounts []string, userName string) []string {
	for _, name := range accounts {
		if name == userName {
			return accounts
		}
	}
	return append(accounts, userName)
}

// Contains reports whether userName is a member of the known-accounts list.
func Contains(accounts []string, userName string) bool {
	for _, name := range accounts {
		if name == userName {
			return true
		}
	}
	return false
}

// JoinAccounts serializes the list for protection.
func JoinAccounts(accounts []string) string {
	return strings.Join(accounts, AccountsSeparator)
}

// SplitAccounts parses the unprotected cookie payload. Empty input yields
// an empty list.
func SplitAccounts(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, AccountsSeparator)
}

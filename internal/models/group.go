package models

// RosterMember is one entry of a group's membership list.
// The roster is authoritative: free-text names produced while parsing an
// expense are always mapped onto one of these entries.
type RosterMember struct {
	// UserID is the member's user identifier (UUID format).
	UserID string

	// Nickname is the display name the member uses inside the group.
	Nickname string
}

// Nicknames returns the nicknames of the roster in order.
func Nicknames(roster []RosterMember) []string {
	names := make([]string, len(roster))
	for i, m := range roster {
		names[i] = m.Nickname
	}
	return names
}

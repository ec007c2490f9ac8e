package util

import "strings"

// NamespacedID builds the node id of a record, "<Kind>:<identifier>".
func NamespacedID(kind, identifier string) string {
	return strings.TrimSpace(kind) + ":" + strings.TrimSpace(identifier)
}

// SplitNamespacedID is the inverse of NamespacedID. Only the first colon
// separates, so identifiers may contain colons themselves.
func SplitNamespacedID(id string) (kind string, identifier string, ok bool) {
	kind, identifier, ok = strings.Cut(id, ":")
	if !ok || kind == "" || identifier == "" {
		return "", "", false
	}
	return kind, identifier, true
}

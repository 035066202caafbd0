package model

import "strings"

// DeletedAuthor is stored in place of an absent account.
// It is the textual rendering earlier archives used for removed users,
// so existing consumers keep matching on it.
const DeletedAuthor = "None"

// removedAuthorNames are author values the API uses for accounts that no
// longer exist or were hidden.
var removedAuthorNames = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}

// NormalizeAuthor maps an author value from the API to the stored text.
// A present identity is returned as-is; an empty, blank or removed identity
// collapses to DeletedAuthor. The result is never empty.
func NormalizeAuthor(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || removedAuthorNames[trimmed] {
		return DeletedAuthor
	}
	return name
}

// typeSeparator separates the kind prefix from the id in a Reddit fullname.
const typeSeparator = "_"

// StripTypePrefix returns the bare id of a fullname such as "t3_abc123".
// Only the part after the first separator is kept. A value without a
// separator is returned unchanged.
func StripTypePrefix(ref string) string {
	_, id, found := strings.Cut(ref, typeSeparator)
	if !found {
		return ref
	}
	return id
}

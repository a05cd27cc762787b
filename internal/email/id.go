package email

import "github.com/google/uuid"

// IDLength is the number of characters kept from the canonical UUID form.
const IDLength = 12

// StableID derives the record id from the decoded date, sender and subject
// using a name-based (version 5) UUID in the DNS namespace.
//
// The id is short on purpose and is not unique: messages sharing the exact
// same date, sender and subject get the same id, and callers must tolerate
// duplicates.
func StableID(date, from, subject string) string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(date+from+subject))
	return id.String()[:IDLength]
}

package imap

// SearchFilter selects which messages of a mailbox are retrieved.
type SearchFilter struct {
	OnlyUnread bool
	// Limit keeps only the last Limit matches in server order. Zero or a
	// negative value means no limit.
	Limit int
}

// RawMessage is a fetched message before decoding.
type RawMessage struct {
	UID   uint32
	Body  []byte
	Flags string
}

// FetchOptions controls one FetchMailbox call.
type FetchOptions struct {
	// Mailbox defaults to INBOX.
	Mailbox string
	Filter  SearchFilter
	// BestEffort skips messages that cannot be fetched instead of failing the
	// whole call. A lost connection still fails it.
	BestEffort bool
}

// MailboxStatus holds the counts reported for a mailbox.
type MailboxStatus struct {
	Name     string
	Messages uint32
	Unseen   uint32
}

package imap

import "errors"

// Failures are reported by wrapping one of these sentinels together with the
// underlying cause, so callers can match them with errors.Is.
var (
	ErrConnection = errors.New("imap connection failed")
	ErrAuth       = errors.New("imap authentication failed")
	ErrMailbox    = errors.New("imap mailbox unavailable")
	ErrSearch     = errors.New("imap search failed")
	ErrFetch      = errors.New("imap fetch failed")

	// ErrRetrieval wraps every error returned by FetchMailbox.
	ErrRetrieval = errors.New("retrieve mail")
)

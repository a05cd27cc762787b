package imap

import "github.com/emersion/go-imap"

func searchCriteria(filter SearchFilter) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if filter.OnlyUnread {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	return criteria
}

// ApplyLimit keeps the last limit handles, which are the most recent ones in
// server order.
func ApplyLimit(uids []uint32, limit int) []uint32 {
	if uids == nil {
		return []uint32{}
	}
	if limit <= 0 || len(uids) <= limit {
		return uids
	}
	return uids[len(uids)-limit:]
}

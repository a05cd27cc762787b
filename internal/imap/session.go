package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"mailfetch/internal/config"
	"mailfetch/internal/logging"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

// Session is one authenticated connection owned by a single retrieval call.
// It is not safe for concurrent use and must be closed by its owner.
type Session struct {
	ctx      context.Context
	client   Client
	logger   *slog.Logger
	mailbox  string
	selected bool
	closed   bool
	stop     func() bool
}

// Open dials the server and logs in. Cancelling ctx tears the connection
// down, which makes any pending command return.
func Open(ctx context.Context, dial Dialer, cfg config.Config, logger *slog.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	c, err := dial(cfg.IMAP, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s := &Session{ctx: ctx, client: c, logger: logger}
	s.stop = context.AfterFunc(ctx, func() {
		_ = c.Terminate()
	})

	if err := c.Login(cfg.Auth.Username, cfg.Auth.Password); err != nil {
		_ = s.Close()
		// The server reply is kept; the credentials never are.
		return nil, s.classify(ErrAuth, fmt.Errorf("login: %w", err))
	}

	logger.Debug("imap session opened", "host", cfg.IMAP.Host, "port", cfg.IMAP.Port)
	return s, nil
}

// Select opens the mailbox read-only. The returned status carries the
// message count only.
func (s *Session) Select(name string) (*MailboxStatus, error) {
	mbox, err := s.client.Select(name, true)
	if err != nil {
		return nil, s.classify(ErrMailbox, fmt.Errorf("select %q: %w", name, err))
	}
	s.mailbox = name
	s.selected = true

	return &MailboxStatus{Name: mbox.Name, Messages: mbox.Messages}, nil
}

// Search returns the UIDs matching filter in the order the server sent them,
// truncated to the last filter.Limit entries.
func (s *Session) Search(filter SearchFilter) ([]uint32, error) {
	uids, err := s.client.UidSearch(searchCriteria(filter))
	if err != nil {
		return nil, s.classify(ErrSearch, fmt.Errorf("search %q: %w", s.mailbox, err))
	}
	return ApplyLimit(uids, filter.Limit), nil
}

// Fetch retrieves the full message and its flags without setting \Seen.
func (s *Session) Fetch(uid uint32) (RawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, ch)
	}()

	var msg *imap.Message
	for m := range ch {
		if msg == nil && m != nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		err = s.classify(ErrFetch, fmt.Errorf("message %d: %w", uid, err))
		if s.lost(err) {
			err = fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return RawMessage{}, err
	}
	if msg == nil {
		return RawMessage{}, fmt.Errorf("%w: message %d not found", ErrFetch, uid)
	}

	body := msg.GetBody(section)
	if body == nil {
		return RawMessage{}, fmt.Errorf("%w: message %d has no body", ErrFetch, uid)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return RawMessage{}, fmt.Errorf("%w: read message %d: %w", ErrFetch, uid, err)
	}

	return RawMessage{
		UID:   uid,
		Body:  data,
		Flags: strings.Join(msg.Flags, " "),
	}, nil
}

// Close unselects the mailbox and logs out. It is safe to call more than
// once; only the first call talks to the server.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.stop()

	if s.selected {
		if err := s.client.Close(); err != nil {
			s.logger.Debug("imap close failed", "mailbox", s.mailbox, "err", err)
		}
		s.selected = false
	}

	if err := s.client.Logout(); err != nil {
		_ = s.client.Terminate()
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// lost reports whether the session can no longer run commands after err,
// either because the call was cancelled or because the connection is gone.
func (s *Session) lost(err error) bool {
	if s.ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, target := range []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		net.ErrClosed,
		imapclient.ErrNotLoggedIn,
		imapclient.ErrNoMailboxSelected,
		imapclient.ErrAlreadyLoggedOut,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// The client drops to LogoutState once its reader sees the connection end.
	return s.selected && s.client.State() != imap.SelectedState
}

// classify attributes err to kind unless the session was cancelled, in
// which case the context error is what the caller needs to see.
func (s *Session) classify(kind, err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

package imap

import (
	"context"
	"fmt"
	"log/slog"

	"mailfetch/internal/config"
	"mailfetch/internal/email"
	"mailfetch/internal/logging"

	"github.com/emersion/go-imap"
)

// Service runs one-shot retrievals. It holds no per-call state, so a single
// Service can serve concurrent calls for different accounts.
type Service struct {
	Dialer  Dialer
	Decoder *email.Decoder
	Logger  *slog.Logger
}

// NewService returns a Service dialing real servers. A nil logger discards.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		Dialer:  Connect,
		Decoder: email.NewDecoder(logger),
		Logger:  logger,
	}
}

// FetchMailbox retrieves the messages of one account over implicit TLS.
func FetchMailbox(ctx context.Context, host string, port int, username, password string, opts FetchOptions) ([]email.Record, error) {
	cfg := config.DefaultConfig()
	cfg.IMAP.Host = host
	cfg.IMAP.Port = port
	cfg.Auth.Username = username
	cfg.Auth.Password = password
	return NewService(nil).FetchMailbox(ctx, cfg, opts)
}

// FetchMailbox opens a session, selects the mailbox, searches it with
// opts.Filter and decodes every match in search order. The session is
// always closed before returning. Unless opts.BestEffort is set, the first
// message that cannot be fetched fails the whole call; a lost connection
// fails it either way. Damaged messages still produce a record.
func (s *Service) FetchMailbox(ctx context.Context, cfg config.Config, opts FetchOptions) (records []email.Record, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrRetrieval, err)
		}
	}()

	mailbox := opts.Mailbox
	if mailbox == "" {
		mailbox = config.DefaultMailbox
	}
	logger := s.logger().With("mailbox", mailbox)

	err = s.withSession(ctx, cfg, func(session *Session) error {
		if _, err := session.Select(mailbox); err != nil {
			return err
		}

		uids, err := session.Search(opts.Filter)
		if err != nil {
			return err
		}
		logger.Debug("messages located", "count", len(uids), "only_unread", opts.Filter.OnlyUnread, "limit", opts.Filter.Limit)

		records = make([]email.Record, 0, len(uids))
		for _, uid := range uids {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := s.retrieve(session, uid)
			if err != nil {
				if opts.BestEffort && !session.lost(err) {
					logger.Warn("skipping message", "uid", uid, "err", err)
					continue
				}
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("mailbox fetched", "records", len(records))
	return records, nil
}

func (s *Service) retrieve(session *Session, uid uint32) (email.Record, error) {
	msg, err := session.Fetch(uid)
	if err != nil {
		return email.Record{}, err
	}

	return s.decoder().Decode(msg.Body, msg.Flags), nil
}

// Status reports the message and unseen counts of a mailbox.
func (s *Service) Status(ctx context.Context, cfg config.Config, mailbox string) (*MailboxStatus, error) {
	var status *MailboxStatus
	err := s.withSession(ctx, cfg, func(session *Session) error {
		mb, err := session.client.Status(mailbox, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen})
		if err != nil {
			return session.classify(ErrMailbox, fmt.Errorf("status %q: %w", mailbox, err))
		}
		status = &MailboxStatus{Name: mb.Name, Messages: mb.Messages, Unseen: mb.Unseen}
		return nil
	})
	return status, err
}

// ListMailboxes returns the names of every mailbox visible to the account.
func (s *Service) ListMailboxes(ctx context.Context, cfg config.Config) ([]string, error) {
	mailboxes := []string{}
	err := s.withSession(ctx, cfg, func(session *Session) error {
		ch := make(chan *imap.MailboxInfo, 10)
		done := make(chan error, 1)
		go func() {
			done <- session.client.List("", "*", ch)
		}()
		for mbox := range ch {
			mailboxes = append(mailboxes, mbox.Name)
		}
		if err := <-done; err != nil {
			return session.classify(ErrMailbox, fmt.Errorf("list: %w", err))
		}
		return nil
	})
	return mailboxes, err
}

func (s *Service) withSession(ctx context.Context, cfg config.Config, fn func(*Session) error) error {
	dial := s.Dialer
	if dial == nil {
		dial = Connect
	}

	session, err := Open(ctx, dial, cfg, s.logger())
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger().Debug("imap session close failed", "err", err)
		}
	}()

	return fn(session)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return logging.Discard()
	}
	return s.Logger
}

func (s *Service) decoder() *email.Decoder {
	if s.Decoder == nil {
		return email.NewDecoder(s.logger())
	}
	return s.Decoder
}

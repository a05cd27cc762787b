package imap

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"mailfetch/internal/config"
	"mailfetch/internal/logging"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

// Client is the subset of the go-imap client used by a retrieval session.
type Client interface {
	Login(username, password string) error
	Logout() error
	Terminate() error
	State() imap.ConnState
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Close() error
	Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error)
	List(ref, name string, ch chan *imap.MailboxInfo) error
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
}

// Dialer opens an unauthenticated connection to the IMAP server.
type Dialer func(cfg config.IMAPConfig, logger *slog.Logger) (Client, error)

// Connect dials the server using implicit TLS, STARTTLS or a plain
// connection, depending on cfg.
func Connect(cfg config.IMAPConfig, logger *slog.Logger) (Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed servers
	}

	var c *imapclient.Client
	var err error

	if cfg.TLS {
		c, err = imapclient.DialTLS(addr, tlsConfig)
	} else {
		c, err = imapclient.Dial(addr)
		if err == nil && cfg.StartTLS {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Terminate()
				return nil, fmt.Errorf("starttls %s: %w", addr, err)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c.ErrorLog = logging.StdLogger(logger, slog.LevelWarn)

	return c, nil
}

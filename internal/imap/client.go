// Package imap implements the mailbox transport collaborator on top of
// go-imap. Besides connect/select/search/fetch/mark-read it carries the
// transient-abort recovery: a failed fetch reconnects once and retries the
// same id before giving up.
package imap

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

var ErrNotConnected = errors.New("imap not connected")

// Options holds the transport settings. Credentials are validated by the
// config layer before a Client is ever constructed.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Client struct {
	opts    Options
	client  *imapclient.Client
	mailbox string
	logger  *slog.Logger

	// Retry policy collaborators, normally wired to fetch and redial.
	fetchOnce func(id uint32) ([]byte, error)
	reconnect func() error
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	c := &Client{opts: opts, logger: logger}
	c.fetchOnce = c.fetch
	c.reconnect = c.redial
	return c
}

// Connect dials the server over TLS and authenticates.
func (c *Client) Connect() error {
	addr := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))

	client, err := imapclient.DialTLS(addr, &imapclient.Options{})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}

	if err := client.Login(c.opts.Username, c.opts.Password).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("IMAP authentication failed: %w", err)
	}

	c.client = client
	c.logger.Info("IMAP connection established", "server", addr)
	return nil
}

// SelectMailbox selects the folder used by subsequent search and fetch
// calls. The name is remembered so a reconnect can restore it.
func (c *Client) SelectMailbox(name string) error {
	if c.client == nil {
		return ErrNotConnected
	}
	if _, err := c.client.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("cannot select mailbox %s: %w", name, err)
	}
	c.mailbox = name
	return nil
}

// Search returns the uids of messages matching the criterion, in mailbox
// order. Supported criteria: UNSEEN, SEEN, ALL, FLAGGED, DELETED.
func (c *Client) Search(criteria string) ([]uint32, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	sc, err := searchCriteria(criteria)
	if err != nil {
		return nil, err
	}

	data, err := c.client.UIDSearch(sc, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	uids := data.AllUIDs()
	ids := make([]uint32, len(uids))
	for i, uid := range uids {
		ids[i] = uint32(uid)
	}
	return ids, nil
}

// Fetch returns the full raw message for one uid. The body section is
// fetched with Peek so the server does not implicitly mark it read. On a
// failed fetch the connection is re-established once and the same uid
// retried before the error escalates.
func (c *Client) Fetch(id uint32) ([]byte, error) {
	raw, err := c.fetchOnce(id)
	if err == nil {
		return raw, nil
	}

	c.logger.Warn("fetch failed, reconnecting", "id", id, "err", err)
	if rerr := c.reconnect(); rerr != nil {
		return nil, fmt.Errorf("reconnect after failed fetch: %w", rerr)
	}
	return c.fetchOnce(id)
}

func (c *Client) fetch(id uint32) ([]byte, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	msgs, err := c.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", id, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found", id)
	}

	raw := msgs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body section", id)
	}
	return raw, nil
}

// MarkRead adds the \Seen flag to one message.
func (c *Client) MarkRead(id uint32) error {
	if c.client == nil {
		return ErrNotConnected
	}

	_, err := c.client.Store(imap.UIDSetNum(imap.UID(id)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Flags:  []imap.Flag{imap.FlagSeen},
		Silent: true,
	}, nil).Collect()
	if err != nil {
		return fmt.Errorf("failed to mark message %d as read: %w", id, err)
	}
	return nil
}

// Disconnect logs out and closes the connection. Safe to call when never
// connected.
func (c *Client) Disconnect() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Logout().Wait(); err != nil {
		c.logger.Warn("IMAP logout failed", "err", err)
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) redial() error {
	_ = c.Disconnect()
	if err := c.Connect(); err != nil {
		return err
	}
	if c.mailbox != "" {
		return c.SelectMailbox(c.mailbox)
	}
	return nil
}

func searchCriteria(criteria string) (*imap.SearchCriteria, error) {
	switch strings.ToUpper(criteria) {
	case "UNSEEN":
		return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}, nil
	case "SEEN":
		return &imap.SearchCriteria{Flag: []imap.Flag{imap.FlagSeen}}, nil
	case "ALL":
		return &imap.SearchCriteria{}, nil
	case "FLAGGED":
		return &imap.SearchCriteria{Flag: []imap.Flag{imap.FlagFlagged}}, nil
	case "DELETED":
		return &imap.SearchCriteria{Flag: []imap.Flag{imap.FlagDeleted}}, nil
	default:
		return nil, fmt.Errorf("unsupported search criteria %q", criteria)
	}
}

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/brody/brody-back/internal/logging"
)

var (
	ErrConnect = errors.New("imap connection/login failed")
	ErrFetch   = errors.New("imap list/fetch failed")
)

const (
	DefaultPort    = 993
	DefaultMailbox = "INBOX"
	DefaultLimit   = 5
	maxLimit       = 50
)

// Credentials identify one IMAP mailbox. Zero values are replaced with the
// defaults above.
type Credentials struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Port     int    `json:"port,omitempty"`
	UseSSL   *bool  `json:"use_ssl,omitempty"`
	Mailbox  string `json:"mailbox,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (c Credentials) withDefaults() Credentials {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.UseSSL == nil {
		useSSL := true
		c.UseSSL = &useSSL
	}
	if strings.TrimSpace(c.Mailbox) == "" {
		c.Mailbox = DefaultMailbox
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Limit > maxLimit {
		c.Limit = maxLimit
	}
	return c
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return errors.New("host, username and password are required")
	}
	return nil
}

type ClientConfig struct {
	DialTimeout time.Duration
	// TLSConfig overrides the default TLS settings; ServerName is always
	// filled from the credentials host when empty.
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

// Client fetches recent messages over IMAP. Each call opens its own
// connection and logs out afterwards.
type Client struct {
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Client{
		dialTimeout: cfg.DialTimeout,
		tlsConfig:   cfg.TLSConfig,
		logger:      cfg.Logger,
	}
}

// FetchRecent returns up to creds.Limit messages from the mailbox, newest
// first. The mailbox is opened read-only so no flags change.
func (c *Client) FetchRecent(ctx context.Context, creds Credentials) ([]Message, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	creds = creds.withDefaults()

	conn, err := c.connect(creds)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Terminate()
	})
	defer func() {
		stop()
		if err := conn.Logout(); err != nil {
			c.logger.Debug("imap logout failed", logging.Err(err))
		}
	}()

	messages, err := c.list(conn, creds)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, ctxErr)
		}
		return nil, err
	}
	c.logger.Info(
		"imap messages fetched",
		logging.Operation("imap_fetch"),
		logging.UserHash(creds.Username),
		slog.String("mailbox", creds.Mailbox),
		slog.Int("count", len(messages)),
	)
	return messages, nil
}

func (c *Client) connect(creds Credentials) (*client.Client, error) {
	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	var (
		conn *client.Client
		err  error
	)
	if *creds.UseSSL {
		tlsConfig := &tls.Config{}
		if c.tlsConfig != nil {
			tlsConfig = c.tlsConfig.Clone()
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = creds.Host
		}
		conn, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
	} else {
		conn, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	conn.Timeout = c.dialTimeout

	if err := conn.Login(creds.Username, creds.Password); err != nil {
		_ = conn.Logout()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return conn, nil
}

func (c *Client) list(conn *client.Client, creds Credentials) ([]Message, error) {
	status, err := conn.Select(creds.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", ErrFetch, creds.Mailbox, err)
	}
	if status.Messages == 0 {
		return []Message{}, nil
	}

	from := uint32(1)
	if status.Messages > uint32(creds.Limit) {
		from = status.Messages - uint32(creds.Limit) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, status.Messages)

	section := &imap.BodySectionName{Peek: true}
	fetched := make(chan *imap.Message, creds.Limit)
	done := make(chan error, 1)
	go func() {
		done <- conn.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, fetched)
	}()

	type rawMessage struct {
		seq  uint32
		body []byte
	}
	var raws []rawMessage
	for msg := range fetched {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		body, err := io.ReadAll(literal)
		if err != nil {
			c.logger.Warn("imap body read failed", slog.Uint64("seq", uint64(msg.SeqNum)), logging.Err(err))
			continue
		}
		raws = append(raws, rawMessage{seq: msg.SeqNum, body: body})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	sort.Slice(raws, func(i, j int) bool { return raws[i].seq > raws[j].seq })

	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		parsed, err := Parse(raw.body)
		if err != nil {
			c.logger.Warn("skipping unparsable message", slog.Uint64("seq", uint64(raw.seq)), logging.Err(err))
			continue
		}
		messages = append(messages, parsed)
	}
	return messages, nil
}

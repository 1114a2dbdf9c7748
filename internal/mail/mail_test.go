package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: =?UTF-8?B?VXJnZW50OiBjYWbDqQ==?=\r\n" +
	"Date: Tue, 10 Mar 2026 09:30:00 +0100\r\n" +
	"Message-ID: <abc@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please reply today.\r\n"

func TestParsePlainMessage(t *testing.T) {
	parsed, err := Parse([]byte(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "<abc@example.com>", parsed.ID)
	assert.Equal(t, "Urgent: café", parsed.Subject)
	assert.Equal(t, "Alice <alice@example.com>", parsed.Sender)
	assert.Equal(t, "Please reply today.\r\n", parsed.Body)
	require.NotNil(t, parsed.Timestamp)
	assert.True(t, parsed.Timestamp.Equal(time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)))
}

func TestParsePrefersPlainOverHTMLAndSkipsAttachments(t *testing.T) {
	raw := "Subject: Report\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html version</p>\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"plain =C3=A9dition\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Disposition: attachment; filename=notes.txt\r\n" +
		"\r\n" +
		"attachment text\r\n" +
		"--outer--\r\n"

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain édition", parsed.Body)
	assert.Nil(t, parsed.Timestamp)
}

func TestParseFallsBackToHTML(t *testing.T) {
	html := base64.StdEncoding.EncodeToString([]byte(
		"<html><style>p{}</style><body><p>Hello&nbsp;there</p><script>alert(1)</script><div>Bye</div></body></html>",
	))
	raw := "Subject: Html only\r\n" +
		"Content-Type: multipart/alternative; boundary=b\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: text/html; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		html + "\r\n" +
		"--b--\r\n"

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Hello there Bye", parsed.Body)
}

func TestParseDecodesLatin1Body(t *testing.T) {
	raw := []byte("Subject: Caf\r\nContent-Type: text/plain; charset=iso-8859-1\r\n\r\ncaf\xe9")
	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "café", parsed.Body)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("this is not a message"))
	assert.Error(t, err)
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<SCRIPT>x()</SCRIPT><p>One &amp; two</p><br/>three<li>four</li>")
	assert.Equal(t, "One & two three four", got)
}

func TestHTMLToTextDropsCommentsAndKeepsInlineWords(t *testing.T) {
	got := HTMLToText("<!-- tracking pixel --><p>Re<b>ply</b>&nbsp;by <a href=\"#\">Friday</a></p><div><p>Thanks<div>Ana")
	assert.Equal(t, "Reply by Friday Thanks Ana", got)
	assert.NotContains(t, got, "tracking")
}

func TestDecodeRaw(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(plainMessage))
	assert.Equal(t, []byte(plainMessage), DecodeRaw(encoded))
	assert.Equal(t, []byte(plainMessage), DecodeRaw(plainMessage))
	assert.Equal(t, []byte("not base64!"), DecodeRaw("not base64!"))
}

func TestCredentialsDefaults(t *testing.T) {
	creds := Credentials{Host: "imap.example.com", Username: "u", Password: "p", Limit: 500}.withDefaults()
	assert.Equal(t, DefaultPort, creds.Port)
	assert.Equal(t, DefaultMailbox, creds.Mailbox)
	assert.Equal(t, maxLimit, creds.Limit)
	require.NotNil(t, creds.UseSSL)
	assert.True(t, *creds.UseSSL)

	assert.Error(t, Credentials{Host: "imap.example.com"}.Validate())
}

func startIMAPServer(t *testing.T) (string, int) {
	t.Helper()

	backend := memory.New()
	user, err := backend.Login(nil, "username", "password")
	require.NoError(t, err)
	inbox, err := user.GetMailbox("INBOX")
	require.NoError(t, err)
	second := "From: boss@example.com\r\nSubject: Second\r\nContent-Type: text/plain\r\n\r\nnewest body"
	require.NoError(t, inbox.CreateMessage(nil, time.Now(), bytes.NewBufferString(second)))

	srv := server.New(backend)
	srv.AllowInsecureAuth = true
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = srv.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	portNumber, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, portNumber
}

func TestClientFetchRecentNewestFirst(t *testing.T) {
	host, port := startIMAPServer(t)
	useSSL := false
	client := NewClient(ClientConfig{DialTimeout: 2 * time.Second})

	messages, err := client.FetchRecent(context.Background(), Credentials{
		Host: host, Port: port, UseSSL: &useSSL, Username: "username", Password: "password",
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Second", messages[0].Subject)
	assert.Equal(t, "newest body", messages[0].Body)

	limited, err := client.FetchRecent(context.Background(), Credentials{
		Host: host, Port: port, UseSSL: &useSSL, Username: "username", Password: "password", Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Second", limited[0].Subject)
}

func TestClientFetchRecentBadLogin(t *testing.T) {
	host, port := startIMAPServer(t)
	useSSL := false
	client := NewClient(ClientConfig{DialTimeout: 2 * time.Second})

	_, err := client.FetchRecent(context.Background(), Credentials{
		Host: host, Port: port, UseSSL: &useSSL, Username: "username", Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnect))
}

func TestClientFetchRecentUnknownMailbox(t *testing.T) {
	host, port := startIMAPServer(t)
	useSSL := false
	client := NewClient(ClientConfig{DialTimeout: 2 * time.Second})

	_, err := client.FetchRecent(context.Background(), Credentials{
		Host: host, Port: port, UseSSL: &useSSL, Username: "username", Password: "password", Mailbox: "Archive",
	})
	assert.ErrorIs(t, err, ErrFetch)
}

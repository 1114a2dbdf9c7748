package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Message is the flattened view of an RFC 822 message used by the triage
// endpoints.
type Message struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Sender    string     `json:"sender"`
	Timestamp *time.Time `json:"timestamp"`
	Body      string     `json:"body"`
}

var headerDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// Parse reads raw RFC 822 bytes. Subject and sender are RFC 2047 decoded, the
// body prefers text/plain over text/html and attachments are skipped.
func Parse(raw []byte) (Message, error) {
	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	parsed := Message{
		ID:      decodeHeader(strings.TrimSpace(msg.Header.Get("Message-Id"))),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Sender:  decodeHeader(msg.Header.Get("From")),
	}
	if date, err := msg.Header.Date(); err == nil {
		parsed.Timestamp = &date
	}

	// A broken MIME body still yields the headers.
	if body, err := extractBody(msg.Header, msg.Body); err == nil {
		parsed.Body = body
	}
	return parsed, nil
}

// DecodeRaw accepts either raw RFC 822 text or its base64 encoding. Input
// without any line break is treated as base64.
func DecodeRaw(input string) []byte {
	if !strings.ContainsAny(input, "\r\n") {
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input)); err == nil {
			return decoded
		}
	}
	return []byte(input)
}

func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

type partHeader interface {
	Get(key string) string
}

type bodyPart struct {
	contentType string
	text        string
}

func extractBody(header partHeader, body io.Reader) (string, error) {
	parts, err := collectParts(header, body)
	if err != nil {
		return "", err
	}
	for _, part := range parts {
		if part.contentType == "text/plain" {
			return part.text, nil
		}
	}
	for _, part := range parts {
		if part.contentType == "text/html" {
			return HTMLToText(part.text), nil
		}
	}
	return "", nil
}

// collectParts walks the MIME tree depth first and returns every inline
// text/plain and text/html leaf in document order.
func collectParts(header partHeader, body io.Reader) ([]bodyPart, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}
	if isAttachment(header.Get("Content-Disposition")) {
		return nil, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}
		reader := multipart.NewReader(body, boundary)
		var parts []bodyPart
		for {
			part, err := reader.NextRawPart()
			if err == io.EOF {
				return parts, nil
			}
			if err != nil {
				return parts, fmt.Errorf("read multipart: %w", err)
			}
			nested, err := collectParts(part.Header, part)
			if err != nil {
				return parts, err
			}
			parts = append(parts, nested...)
		}
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return nil, nil
	}
	text, err := decodeTextBody(body, header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return nil, err
	}
	return []bodyPart{{contentType: mediaType, text: text}}, nil
}

func decodeTextBody(body io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	reader, err := charsetReader(charset, body)
	if err != nil {
		reader = body
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return strings.ToValidUTF8(string(content), ""), nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return input, nil
	}
	encoding, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, encoding.NewDecoder()), nil
}

func isAttachment(disposition string) bool {
	return strings.Contains(strings.ToLower(disposition), "attachment")
}

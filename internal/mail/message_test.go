package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Bytes(t *testing.T) {
	account := Account{Username: "digest@example.com", SenderName: "文献推送"}
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	body := "<p>" + strings.Repeat("综述正文 ", 40) + "</p>"

	msg := NewMessage(account, "reader@example.org", "PubMed daily literature report - 肺癌 - 2026-03-04", body, now)
	parsed, err := netmail.ReadMessage(bytes.NewReader(msg.Bytes()))
	require.NoError(t, err)

	from, err := parsed.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "文献推送", from[0].Name)
	assert.Equal(t, "digest@example.com", from[0].Address)

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "PubMed daily literature report - 肺癌 - 2026-03-04", subject)

	assert.Equal(t, "reader@example.org", parsed.Header.Get("To"))
	assert.Equal(t, `text/html; charset="utf-8"`, parsed.Header.Get("Content-Type"))
	assert.Equal(t, "base64", parsed.Header.Get("Content-Transfer-Encoding"))
	assert.True(t, strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.com>"))

	date, err := parsed.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(now))

	raw, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(raw), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestMessage_HeaderInjection(t *testing.T) {
	account := Account{Username: "digest@example.com"}
	msg := NewMessage(account, "reader@example.org\r\nBcc: victim@example.org", "subject", "body", time.Now())

	parsed, err := netmail.ReadMessage(bytes.NewReader(msg.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, parsed.Header.Get("Bcc"))
}

package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is one outbound SMTP account.
type Account struct {
	Server     string
	Port       int
	Username   string
	Password   string
	SenderName string
}

// Address returns the account as a From header address.
func (a Account) Address() string {
	return (&netmail.Address{Name: a.SenderName, Address: a.Username}).String()
}

// Message is a single-part HTML email.
type Message struct {
	From      string
	To        string
	Subject   string
	HTMLBody  string
	Date      time.Time
	MessageID string
}

// NewMessage builds a message sent from account to recipient.
func NewMessage(account Account, recipient, subject, htmlBody string, now time.Time) *Message {
	domain := "localhost"
	if _, host, ok := strings.Cut(account.Username, "@"); ok && host != "" {
		domain = host
	}
	return &Message{
		From:      account.Address(),
		To:        recipient,
		Subject:   subject,
		HTMLBody:  htmlBody,
		Date:      now,
		MessageID: fmt.Sprintf("<%s@%s>", uuid.NewString(), domain),
	}
}

// Bytes renders the message in RFC 5322 form with a base64 encoded body.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", m.From)
	writeHeader(&buf, "To", m.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "Date", m.Date.Format(time.RFC1123Z))
	if m.MessageID != "" {
		writeHeader(&buf, "Message-ID", m.MessageID)
	}
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", `text/html; charset="utf-8"`)
	writeHeader(&buf, "Content-Transfer-Encoding", "base64")
	buf.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(m.HTMLBody))
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	if encoded != "" {
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

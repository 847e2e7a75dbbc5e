package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"
)

// ImplicitTLSPort is the submission port that starts with TLS instead of STARTTLS.
const ImplicitTLSPort = 465

// DefaultTimeout bounds one SMTP conversation.
const DefaultTimeout = 30 * time.Second

// Transport delivers one message through one account.
type Transport interface {
	Send(ctx context.Context, account Account, msg *Message) error
}

// IsTransient reports whether err is the SMTP 451 "temporarily unavailable"
// reply, the only failure worth retrying with the same account.
func IsTransient(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code == 451
}

// SMTPTransport sends mail with net/smtp. Port 465 dials TLS directly; any
// other port connects in plaintext and upgrades with STARTTLS.
type SMTPTransport struct {
	timeout            time.Duration
	insecureSkipVerify bool
}

// NewSMTPTransport creates an SMTP transport. A non-positive timeout uses
// DefaultTimeout.
func NewSMTPTransport(timeout time.Duration, insecureSkipVerify bool) *SMTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SMTPTransport{timeout: timeout, insecureSkipVerify: insecureSkipVerify}
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, account Account, msg *Message) error {
	addr := net.JoinHostPort(account.Server, strconv.Itoa(account.Port))
	tlsConfig := &tls.Config{
		ServerName:         account.Server,
		InsecureSkipVerify: t.insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	conn, err := t.dial(ctx, addr, account.Port, tlsConfig)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set deadline on %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, account.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("greeting from %s: %w", addr, err)
	}
	defer client.Close()

	if account.Port != ImplicitTLSPort {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls with %s: %w", addr, err)
		}
	}

	if err := client.Auth(smtp.PlainAuth("", account.Username, account.Password, account.Server)); err != nil {
		return fmt.Errorf("authenticate %s: %w", account.Username, err)
	}
	if err := client.Mail(account.Username); err != nil {
		return fmt.Errorf("mail from %s: %w", account.Username, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	// The message is accepted once DATA completes; a failed QUIT is not a delivery failure.
	_ = client.Quit()
	return nil
}

func (t *SMTPTransport) dial(ctx context.Context, addr string, port int, tlsConfig *tls.Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: t.timeout}
	if port == ImplicitTLSPort {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

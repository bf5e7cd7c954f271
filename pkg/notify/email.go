package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/swanchain/deposit-watch/pkg/log"
)

// Email sends plain-text mail over SMTP with STARTTLS and LOGIN auth,
// which is what Office 365 expects.
type Email struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
}

type loginAuth struct {
	username, password string
}

func LoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte(a.username), nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return nil, errors.New("unknown from server")
		}
	}
	return nil, nil
}

func (e *Email) Notify(ctx context.Context, subject, message string) error {
	var errs []error
	for _, recipient := range e.Recipients {
		if err := e.send(ctx, recipient, subject, message); err != nil {
			errs = append(errs, fmt.Errorf("email to %s: %w", recipient, err))
			continue
		}
		log.Infof("Sent email to %s", recipient)
	}
	return errors.Join(errs...)
}

// https://stackoverflow.com/questions/58804817/setting-up-standard-go-net-smtp-with-office-365-fails-with-error-tls-first-rec
func (e *Email) send(ctx context.Context, to, subject, message string) error {
	from := e.User
	msg := buildMessage(from, to, subject, message)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
	if err != nil {
		return fmt.Errorf("net dial error: %w", err)
	}

	c, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp new client error: %w", err)
	}
	defer c.Close()

	if err = c.StartTLS(&tls.Config{ServerName: e.Host}); err != nil {
		return fmt.Errorf("start tls error: %w", err)
	}
	if err = c.Auth(LoginAuth(from, e.Password)); err != nil {
		return fmt.Errorf("auth error: %w", err)
	}
	if err = c.Mail(from); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}
	if err = c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt error: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) string {
	return "From: " + from + "\n" +
		"To: " + to + "\n" +
		"Subject: " + subject + "\n\n" +
		body
}

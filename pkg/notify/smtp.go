package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SMTPSender) SendCode(ctx context.Context, recipient *Recipient, code string) error {
	if recipient.Email == "" {
		return fmt.Errorf("recipient has no email address")
	}

	subject := "Your ride verification code"
	body := fmt.Sprintf(
		"Your verification code is: %s\r\n\r\nIt expires in 10 minutes. If you did not request it, ignore this message.\r\n",
		code,
	)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.fromName, s.fromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.fromEmail, []string{recipient.Email}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send code email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

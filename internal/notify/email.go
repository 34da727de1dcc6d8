package notify

import (
	"errors"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers HTML email over SMTP.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, Username: username, Password: password, From: from}
}

func (s *SMTPSender) Validate() error {
	if s.Host == "" || s.From == "" {
		return errors.New("smtp: host and from address are required")
	}
	return nil
}

func (s *SMTPSender) SendEmail(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	return d.DialAndSend(m)
}

package service

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
	"gopkg.in/gomail.v2"
)

// SMTPMailer implements Mailer over a plain SMTP dialer
type SMTPMailer struct{}

func (SMTPMailer) SendVerification(to, token, vid string) error {
	from := viper.GetString("mail.sender")

	var s string
	if viper.GetBool("host.ssl.enabled") {
		s = "s"
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("vid", vid)
	q.Set("email", to)

	verifLink := fmt.Sprintf("http%v://%v/verify?%v", s, viper.GetString("host.domain"), q.Encode())

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Verify your email address")
	m.SetBody("text/html", fmt.Sprintf("Click <a href='%v'>here</a> to verify your account.\n\nThis link will expire in %v minutes", verifLink, viper.GetInt("verification.token_ttl_min")))

	d := gomail.NewDialer(
		viper.GetString("mail.host"),
		viper.GetInt("mail.port"),
		from,
		viper.GetString("mail.password"),
	)

	return d.DialAndSend(m)
}

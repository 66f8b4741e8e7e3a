// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty     = errors.New("no email address provided")
	ErrEmailInvalid   = errors.New("invalid email address provided")
	ErrEmailSynthetic = errors.New("email address can't receive mail")
)

// Domains (and TLDs) that can never receive mail. Tokens must not be
// issued for addresses like these
var syntheticDomains = []string{
	"localhost",
	".local",
	".invalid",
	".test",
}

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	addr, err := mail.ParseAddress(e)
	if err != nil {
		return ErrEmailInvalid
	}

	at := strings.LastIndex(addr.Address, "@")
	domain := strings.ToLower(addr.Address[at+1:])

	if !strings.Contains(domain, ".") {
		return ErrEmailSynthetic
	}

	for _, d := range syntheticDomains {
		if domain == strings.TrimPrefix(d, ".") || strings.HasSuffix(domain, d) {
			return ErrEmailSynthetic
		}
	}

	return nil
}

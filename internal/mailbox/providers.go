package mailbox

import (
	"strings"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/config"
)

// Endpoint is the IMAP server of a mail provider
type Endpoint struct {
	Host string
	Port int
	TLS  bool
}

var defaultProviders = map[string]Endpoint{
	"gmail.com":   {Host: "imap.gmail.com", Port: 993, TLS: true},
	"yahoo.com":   {Host: "imap.mail.yahoo.com", Port: 993, TLS: true},
	"outlook.com": {Host: "imap-mail.outlook.com", Port: 993, TLS: true},
	"hotmail.com": {Host: "imap-mail.outlook.com", Port: 993, TLS: true},
}

// Resolver maps an email domain to its IMAP endpoint
type Resolver struct {
	endpoints map[string]Endpoint
}

// NewResolver creates a resolver over the built-in providers plus extra.
// Entries in extra override built-in domains.
func NewResolver(extra []config.ProviderHost) *Resolver {
	endpoints := make(map[string]Endpoint, len(defaultProviders)+len(extra))
	for domain, ep := range defaultProviders {
		endpoints[domain] = ep
	}
	for _, p := range extra {
		domain := strings.ToLower(strings.TrimSpace(p.Domain))
		if domain == "" || p.Host == "" {
			continue
		}
		port := p.Port
		if port == 0 {
			port = 993
		}
		endpoints[domain] = Endpoint{Host: p.Host, Port: port, TLS: p.TLS}
	}
	return &Resolver{endpoints: endpoints}
}

// Resolve returns the endpoint serving email
func (r *Resolver) Resolve(email string) (Endpoint, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return Endpoint{}, apperr.New(apperr.KindValidation, "invalid email address")
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	ep, ok := r.endpoints[domain]
	if !ok {
		return Endpoint{}, apperr.New(apperr.KindUnsupportedProvider, "unsupported email provider: "+domain)
	}
	return ep, nil
}

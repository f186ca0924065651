// Package alert emails a digest of stock increases to the configured
// recipients over authenticated SMTP with STARTTLS.
package alert

import (
	"fmt"
	"log"
	"net/smtp"
	"sort"
	"strings"

	"github.com/jordan-wright/email"

	"stockwatch/pkg/models"
)

// Dispatcher sends stock-increase digests. It is disabled (and logs once at
// construction) when credentials or recipients are missing, so a local run
// without SMTP still scrapes and snapshots.
type Dispatcher struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
	enabled    bool

	// send is swapped out in tests to observe delivery without a network.
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewDispatcher(host string, port int, username, password, from string, recipients []string) *Dispatcher {
	enabled := username != "" && password != "" && len(recipients) > 0
	if !enabled {
		log.Print("alert: SMTP credentials or recipients missing, email alerts disabled")
	}
	if from == "" {
		from = username
	}
	return &Dispatcher{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		recipients: recipients,
		enabled:    enabled,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Enabled reports whether delivery is configured.
func (d *Dispatcher) Enabled() bool {
	return d.enabled
}

// Notify delivers one digest of increases for a product to all recipients.
// It is a no-op when increases is empty. Delivery failures are returned to
// the caller; a silently dropped alert defeats the whole system.
func (d *Dispatcher) Notify(increases map[string]models.Increase, productLabel, productTitle string) error {
	if len(increases) == 0 {
		return nil
	}
	if !d.enabled {
		log.Printf("alert: %d increase(s) for %s not emailed, alerts disabled", len(increases), productLabel)
		return nil
	}

	e := email.NewEmail()
	e.From = d.from
	e.To = d.recipients
	e.Subject = fmt.Sprintf("Canadian Tire Stock Alert – %s", productLabel)
	e.Text = []byte(BuildBody(increases, productLabel, productTitle))

	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	auth := smtp.PlainAuth("", d.username, d.password, d.host)
	if err := d.send(e, addr, auth); err != nil {
		return fmt.Errorf("send stock alert for %s: %w", productLabel, err)
	}
	log.Printf("alert: sent stock alert for %s to %s", productLabel, strings.Join(d.recipients, ", "))
	return nil
}

// BuildBody renders the plain-text digest, one line per store, sorted by
// store label for reproducible output.
func BuildBody(increases map[string]models.Increase, productLabel, productTitle string) string {
	header := productLabel
	if productTitle != "" && productTitle != productLabel {
		header = fmt.Sprintf("%s (%s)", productLabel, productTitle)
	}

	stores := make([]string, 0, len(increases))
	for store := range increases {
		stores = append(stores, store)
	}
	sort.Strings(stores)

	lines := []string{fmt.Sprintf("New stock arrivals for %s:", header)}
	for _, store := range stores {
		inc := increases[store]
		lines = append(lines, fmt.Sprintf("- %s: %d → %d", store, inc.Old, inc.New))
	}
	return strings.Join(lines, "\n")
}

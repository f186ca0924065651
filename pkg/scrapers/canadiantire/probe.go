package canadiantire

import (
	"fmt"
	"log"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Probe does a static preflight of a product page before the browser run:
// it confirms the page answers and pulls the product title for alert bodies
// and logs. Stock itself only exists in the rendered overlay, so this never
// replaces the browser pass.
type Probe struct {
	Collector *colly.Collector
}

func NewProbe(userAgent string) *Probe {
	c := colly.NewCollector(
		colly.AllowedDomains("www.canadiantire.ca"),
		colly.UserAgent(userAgent),
	)
	return &Probe{Collector: c}
}

// Title fetches url and returns the product heading. The collector is
// cloned per call so repeated passes over the same URL are not deduplicated
// away.
func (p *Probe) Title(url string) (string, error) {
	var title string

	c := p.Collector.Clone()
	c.OnHTML("h1", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})

	log.Printf("[%s] probing %s", Source, url)
	if err := c.Visit(url); err != nil {
		return "", err
	}

	if title == "" {
		return "", fmt.Errorf("no product heading at %s", url)
	}
	return title, nil
}

package canadiantire

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<body>
	<h1>
		Hot Wheels Car Culture Assortment
	</h1>
	<span class="nl-tag">rendered later by the client</span>
</body>
</html>
`)
	}))
	defer ts.Close()

	probe := NewProbe("test-agent")
	probe.Collector.AllowedDomains = nil

	title, err := probe.Title(ts.URL + "/en/pdp/0508182p.html")
	if err != nil {
		t.Fatalf("Title failed: %v", err)
	}
	if title != "Hot Wheels Car Culture Assortment" {
		t.Errorf("Title = %q, want %q", title, "Hot Wheels Car Culture Assortment")
	}

	// A second probe of the same URL must not be deduplicated away.
	if _, err := probe.Title(ts.URL + "/en/pdp/0508182p.html"); err != nil {
		t.Fatalf("repeat Title failed: %v", err)
	}
}

func TestProbeTitleMissingHeading(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer ts.Close()

	probe := NewProbe("test-agent")
	probe.Collector.AllowedDomains = nil

	if _, err := probe.Title(ts.URL); err == nil {
		t.Fatal("expected an error for a page without a product heading")
	}
}

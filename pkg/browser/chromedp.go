package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const visiblePollInterval = 100 * time.Millisecond

// helperJS is injected into every evaluated expression. __query implements
// the selector engine (CSS plus the "text=" form); __visible mirrors the
// usual is-it-actually-rendered check.
const helperJS = `
function __query(sel) {
	if (sel.lastIndexOf('text=', 0) === 0) {
		var needle = sel.slice(5).trim().toLowerCase();
		var all = document.querySelectorAll('a, button, [role="button"], span, div');
		var out = [];
		for (var i = 0; i < all.length; i++) {
			var el = all[i];
			if (((el.textContent || '').trim().toLowerCase()).indexOf(needle) === -1) continue;
			var kids = el.querySelectorAll('*');
			var deeper = false;
			for (var j = 0; j < kids.length; j++) {
				if ((((kids[j].textContent) || '').trim().toLowerCase()).indexOf(needle) !== -1) { deeper = true; break; }
			}
			if (!deeper) out.push(el);
		}
		return out;
	}
	return Array.prototype.slice.call(document.querySelectorAll(sel));
}
function __visible(el) {
	if (!el) return false;
	var style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	return el.getClientRects().length > 0;
}
function __setValue(el, v) {
	var proto = (el instanceof HTMLTextAreaElement) ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
	Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, v);
	el.dispatchEvent(new Event('input', { bubbles: true }));
}
`

// Session owns the browser process. One Page is handed out and reused
// serially; the monitor loop is the only caller.
type Session struct {
	page        *chromedpPage
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession launches a browser and attaches a single page to it.
func NewSession(headless bool, userAgent string) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-geolocation", true),
		chromedp.Flag("deny-permission-prompts", true),
	)
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser now so a broken Chrome install fails here instead of
	// mid-run.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Session{
		page:        &chromedpPage{ctx: ctx},
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// Page returns the session's single page.
func (s *Session) Page() Page {
	return s.page
}

// Close tears the browser down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

type chromedpPage struct {
	ctx context.Context
}

// run executes chromedp actions against the browser context, carrying over
// any deadline or cancellation from the caller's context.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) eval(ctx context.Context, js string, out any) error {
	return p.run(ctx, chromedp.Evaluate(js, out))
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	)
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`(function(){ %s; return __query(%q).length; })()`, helperJS, selector)
	if err := p.eval(ctx, js, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *chromedpPage) ScrollIntoView(ctx context.Context, selector string, index int) error {
	var ok bool
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return false;
		el.scrollIntoView({ block: 'center' });
		return true;
	})()`, helperJS, selector, index)
	if err := p.eval(ctx, js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element %q[%d] to scroll to", selector, index)
	}
	return nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string, index int, timeout time.Duration) error {
	js := fmt.Sprintf(`(function(){ %s; return __visible(__query(%q)[%d]); })()`, helperJS, selector, index)
	deadline := time.Now().Add(timeout)
	for {
		var visible bool
		if err := p.eval(ctx, js, &visible); err != nil {
			return err
		}
		if visible {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for %q[%d] to become visible", timeout, selector, index)
		}
		if err := p.Sleep(ctx, visiblePollInterval); err != nil {
			return err
		}
	}
}

func (p *chromedpPage) Click(ctx context.Context, selector string, index int, force bool) error {
	var state string
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return 'missing';
		if (!%t && !__visible(el)) return 'hidden';
		el.scrollIntoView({ block: 'center' });
		el.click();
		return 'ok';
	})()`, helperJS, selector, index, force)
	if err := p.eval(ctx, js, &state); err != nil {
		return err
	}
	switch state {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("no element %q[%d] to click", selector, index)
	default:
		return fmt.Errorf("element %q[%d] is %s", selector, index, state)
	}
}

func (p *chromedpPage) Hover(ctx context.Context, selector string, index int) error {
	var ok bool
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return false;
		el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
		el.dispatchEvent(new MouseEvent('mouseenter', { bubbles: true }));
		return true;
	})()`, helperJS, selector, index)
	if err := p.eval(ctx, js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element %q[%d] to hover", selector, index)
	}
	return nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector string, index int, text string) error {
	var ok bool
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return false;
		el.focus();
		__setValue(el, %q);
		return true;
	})()`, helperJS, selector, index, text)
	if err := p.eval(ctx, js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element %q[%d] to fill", selector, index)
	}
	return nil
}

func (p *chromedpPage) Type(ctx context.Context, selector string, index int, text string, keyDelay time.Duration) error {
	for _, r := range text {
		var ok bool
		js := fmt.Sprintf(`(function(){ %s;
			var el = __query(%q)[%d];
			if (!el) return false;
			el.focus();
			__setValue(el, (el.value || '') + %q);
			return true;
		})()`, helperJS, selector, index, string(r))
		if err := p.eval(ctx, js, &ok); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no element %q[%d] to type into", selector, index)
		}
		if err := p.Sleep(ctx, keyDelay); err != nil {
			return err
		}
	}
	return nil
}

type textResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

func (p *chromedpPage) InnerText(ctx context.Context, selector string, index int) (string, bool, error) {
	var res textResult
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return { found: false, text: '' };
		return { found: true, text: el.innerText || '' };
	})()`, helperJS, selector, index)
	if err := p.eval(ctx, js, &res); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

func (p *chromedpPage) ChildText(ctx context.Context, selector string, index int, childSelector string) (string, bool, error) {
	var res textResult
	js := fmt.Sprintf(`(function(){ %s;
		var el = __query(%q)[%d];
		if (!el) return { found: false, text: '' };
		var child = el.querySelector(%q);
		if (!child) return { found: false, text: '' };
		return { found: true, text: child.innerText || '' };
	})()`, helperJS, selector, index, childSelector)
	if err := p.eval(ctx, js, &res); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

func (p *chromedpPage) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

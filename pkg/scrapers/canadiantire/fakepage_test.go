package canadiantire

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errBoom = errors.New("boom")

type click struct {
	selector string
	index    int
	force    bool
}

type fakeCard struct {
	name  string
	tag   string
	noTag bool
}

// fakePage is a scripted in-memory page. Sleeps return immediately so retry
// loops stay fast; visibility waits fail instantly when scripted to.
type fakePage struct {
	counts       map[string]int
	countCalls   map[string]int
	neverVisible map[string]bool
	clicks       []click
	clickErrs    []error
	cards        []fakeCard
	filled       []string
	typed        []string
}

func newFakePage() *fakePage {
	return &fakePage{
		counts:       make(map[string]int),
		countCalls:   make(map[string]int),
		neverVisible: make(map[string]bool),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return ctx.Err()
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	p.countCalls[selector]++
	if selector == cardSelector {
		return len(p.cards), nil
	}
	return p.counts[selector], nil
}

func (p *fakePage) ScrollIntoView(ctx context.Context, selector string, index int) error {
	return ctx.Err()
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, index int, timeout time.Duration) error {
	if p.neverVisible[selector] {
		return fmt.Errorf("timed out waiting for %q[%d]", selector, index)
	}
	return ctx.Err()
}

func (p *fakePage) Click(ctx context.Context, selector string, index int, force bool) error {
	p.clicks = append(p.clicks, click{selector: selector, index: index, force: force})
	if selector == triggerSelector && len(p.clickErrs) > 0 {
		err := p.clickErrs[0]
		p.clickErrs = p.clickErrs[1:]
		return err
	}
	return ctx.Err()
}

func (p *fakePage) Hover(ctx context.Context, selector string, index int) error {
	return ctx.Err()
}

func (p *fakePage) Fill(ctx context.Context, selector string, index int, text string) error {
	p.filled = append(p.filled, text)
	return ctx.Err()
}

func (p *fakePage) Type(ctx context.Context, selector string, index int, text string, keyDelay time.Duration) error {
	p.typed = append(p.typed, text)
	return ctx.Err()
}

func (p *fakePage) InnerText(ctx context.Context, selector string, index int) (string, bool, error) {
	return "", false, ctx.Err()
}

func (p *fakePage) ChildText(ctx context.Context, selector string, index int, childSelector string) (string, bool, error) {
	if selector != cardSelector || index < 0 || index >= len(p.cards) {
		return "", false, ctx.Err()
	}
	card := p.cards[index]
	switch childSelector {
	case cardNameSelector:
		return card.name, true, nil
	case stockTagSelector:
		if card.noTag {
			return "", false, nil
		}
		return card.tag, true, nil
	}
	return "", false, ctx.Err()
}

func (p *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hpungsan/murmur/internal/config"
)

// RodPage implements Page with a Chrome tab controlled by go-rod.
type RodPage struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher

	navTimeout     time.Duration
	elementTimeout time.Duration
}

var _ Page = (*RodPage)(nil)

// OpenRod attaches to cfg.DebuggerURL, or launches a local browser when it
// is empty, and opens a blank tab.
func OpenRod(ctx context.Context, cfg config.BrowserConfig) (*RodPage, error) {
	p := &RodPage{
		navTimeout:     time.Duration(cfg.NavigationTimeoutMs) * time.Millisecond,
		elementTimeout: time.Duration(cfg.ElementTimeoutMs) * time.Millisecond,
	}

	controlURL := strings.TrimSpace(cfg.DebuggerURL)
	if controlURL == "" {
		p.launcher = launcher.New().Headless(cfg.Headless)
		u, err := p.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		p.kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	p.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		p.kill()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p.page = page
	return p, nil
}

// Navigate loads url and waits for the load event.
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.elementTimeout
	}
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (p *RodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Timeout(p.elementTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *RodPage) Type(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Timeout(p.elementTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Input(text)
}

func (p *RodPage) PressEnter(ctx context.Context) error {
	return p.page.Context(ctx).Keyboard.Press(input.Enter)
}

func (p *RodPage) Texts(ctx context.Context, selector string) ([]string, error) {
	els, err := p.page.Context(ctx).Timeout(p.elementTimeout).Elements(selector)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

func (p *RodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, nil)
}

// Close closes the tab and the browser, and stops a launched browser process.
func (p *RodPage) Close() error {
	var err error
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.browser != nil {
		err = p.browser.Close()
	}
	p.kill()
	return err
}

func (p *RodPage) kill() {
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher = nil
	}
}

package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

// Selectors tell the Commenter where things are on the page. For each list
// the first selector that matches wins.
type Selectors struct {
	PostLinks []string
	Comments  []string
	Inputs    []string
	Submits   []string
}

// Commenter reads context comments from a target page and publishes replies.
type Commenter struct {
	page           Page
	targetURL      string
	sel            Selectors
	elementTimeout time.Duration
	screenshotDir  string
	log            *zap.Logger
	now            func() time.Time
}

// NewCommenter creates a Commenter. screenshotDir receives error
// screenshots and may be empty to disable them.
func NewCommenter(p Page, cfg config.BrowserConfig, screenshotDir string, log *zap.Logger) *Commenter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ScreenshotDir != "" {
		screenshotDir = cfg.ScreenshotDir
	}
	return &Commenter{
		page:      p,
		targetURL: cfg.TargetURL,
		sel: Selectors{
			PostLinks: cfg.PostLinkSelectors,
			Comments:  cfg.CommentSelectors,
			Inputs:    cfg.InputSelectors,
			Submits:   cfg.SubmitSelectors,
		},
		elementTimeout: time.Duration(cfg.ElementTimeoutMs) * time.Millisecond,
		screenshotDir:  screenshotDir,
		log:            log.Named("page"),
		now:            time.Now,
	}
}

// CollectComments opens the target, follows the first post link when post
// link selectors are configured, and returns the texts under the first
// comment selector that yields any.
func (c *Commenter) CollectComments(ctx context.Context) ([]string, error) {
	if c.targetURL == "" {
		return nil, errors.NewInvalidRequest("browser target_url is not configured")
	}

	if err := c.page.Navigate(ctx, c.targetURL); err != nil {
		return nil, c.fail(ctx, "navigate", err)
	}

	if len(c.sel.PostLinks) > 0 {
		link, err := c.firstMatch(ctx, c.sel.PostLinks)
		if err != nil {
			return nil, c.fail(ctx, "find post", err)
		}
		if err := c.page.Click(ctx, link); err != nil {
			return nil, c.fail(ctx, "open post", err)
		}
	}

	for _, sel := range c.sel.Comments {
		if err := c.page.WaitFor(ctx, sel, c.elementTimeout); err != nil {
			continue
		}
		texts, err := c.page.Texts(ctx, sel)
		if err != nil {
			c.log.Debug("comment selector failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if len(texts) > 0 {
			c.log.Info("collected comments", zap.Int("count", len(texts)), zap.String("selector", sel))
			return texts, nil
		}
	}

	c.log.Warn("no comments found on page")
	return nil, nil
}

// Publish types text into the comment field and submits it, by button when
// a submit selector matches and by Enter otherwise.
func (c *Commenter) Publish(ctx context.Context, text string) error {
	field, err := c.firstMatch(ctx, c.sel.Inputs)
	if err != nil {
		return c.fail(ctx, "find comment field", err)
	}
	if err := c.page.Click(ctx, field); err != nil {
		return c.fail(ctx, "focus comment field", err)
	}
	if err := c.page.Type(ctx, field, text); err != nil {
		return c.fail(ctx, "type comment", err)
	}

	if submit, err := c.firstMatch(ctx, c.sel.Submits); err == nil {
		if err := c.page.Click(ctx, submit); err != nil {
			return c.fail(ctx, "submit comment", err)
		}
	} else {
		c.log.Debug("no submit button, pressing enter")
		if err := c.page.PressEnter(ctx); err != nil {
			return c.fail(ctx, "submit comment", err)
		}
	}

	c.log.Info("comment published", zap.Int("chars", len([]rune(text))))
	return nil
}

// Close releases the page.
func (c *Commenter) Close() error {
	return c.page.Close()
}

// firstMatch returns the first selector that matches an element.
func (c *Commenter) firstMatch(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		if err := c.page.WaitFor(ctx, sel, c.elementTimeout); err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("none of %d selectors matched", len(selectors))
}

// fail screenshots the page and wraps err as a PAGE error.
func (c *Commenter) fail(ctx context.Context, action string, err error) error {
	c.log.Error("page action failed", zap.String("action", action), zap.Error(err))
	if path := c.screenshot(ctx, action); path != "" {
		c.log.Info("error screenshot saved", zap.String("path", path))
	}
	return errors.NewPage(action, err)
}

func (c *Commenter) screenshot(ctx context.Context, action string) string {
	if c.screenshotDir == "" {
		return ""
	}
	data, err := c.page.Screenshot(ctx)
	if err != nil {
		c.log.Debug("screenshot failed", zap.Error(err))
		return ""
	}
	name := fmt.Sprintf("error-%s-%s.png", c.now().Format("20060102-150405"), slug(action))
	path := filepath.Join(c.screenshotDir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		c.log.Debug("screenshot write failed", zap.Error(err))
		return ""
	}
	return path
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

// Package page drives the web page that comments are read from and posted
// to. Page is the browser capability; Commenter builds the collect and
// publish steps on top of it from configured selector lists.
package page

import (
	"context"
	"time"
)

// Page is an open browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches an element or timeout passes.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	PressEnter(ctx context.Context) error
	// Texts returns the visible text of every element matching selector.
	Texts(ctx context.Context, selector string) ([]string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

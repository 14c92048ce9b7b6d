package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Renderer drives a shared headless Chrome for sources that build their
// listings and detail pages client-side. One Renderer owns one browser
// process; each Render call gets its own tab.
type Renderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
}

// WaitSpec tells Render when a page counts as loaded. CSS waits for a
// selector to appear; JS polls an expression until it is truthy. Either may
// be empty.
type WaitSpec struct {
	CSS string
	JS  string
}

func NewRenderer(ctx context.Context, userAgent string) (*Renderer, error) {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)...,
	)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Renderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}, nil
}

// Render navigates to url in a fresh tab and returns the rendered document.
// If the wait condition never fires within timeout, the page HTML captured so
// far is returned best-effort rather than nothing. Cancelling ctx aborts the
// tab even though the tab itself lives under the shared browser context.
func (r *Renderer) Render(ctx context.Context, url string, wait WaitSpec, timeout time.Duration) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil renderer")
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	navCtx, navCancel := context.WithTimeout(tabCtx, timeout)
	defer navCancel()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if wait.CSS != "" {
		actions = append(actions, chromedp.WaitVisible(wait.CSS, chromedp.ByQuery))
	}
	if wait.JS != "" {
		actions = append(actions, chromedp.Poll(wait.JS, nil, chromedp.WithPollingTimeout(timeout)))
	}
	actions = append(actions, chromedp.Sleep(500*time.Millisecond))

	var html string
	err := chromedp.Run(navCtx, append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))...)
	if err == nil {
		return html, nil
	}

	if navCtx.Err() == context.DeadlineExceeded {
		// Wait condition timed out. Grab whatever rendered.
		grabCtx, grabCancel := context.WithTimeout(tabCtx, 5*time.Second)
		defer grabCancel()
		if gerr := chromedp.Run(grabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); gerr == nil && strings.TrimSpace(html) != "" {
			log.Printf("browser:render url=%s wait timed out, using partial page", url)
			return html, nil
		}
	}
	return "", fmt.Errorf("render %s: %w", url, err)
}

func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.browserStop()
	r.allocCancel()
}

// Package screenshot renders captured task HTML in headless Chrome.
package screenshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"collabsauce/api/internal/store"
)

// ElementSelector marks the element the widget user selected.
const ElementSelector = "[data-collab-selected-element]"

const (
	defaultWidth  = 1280
	defaultHeight = 800
)

var (
	ErrChromeMissing  = errors.New("chromium not installed")
	ErrInvalidDataURL = errors.New("invalid png data url")
)

type Request struct {
	HTML           string
	Width          int
	Height         int
	Scale          float64
	CaptureElement bool
}

type Result struct {
	Window  []byte
	Element []byte
}

type Renderer interface {
	Render(ctx context.Context, req Request) (Result, error)
}

// RequestFor sizes the render to the browser window the widget reported.
func RequestFor(task store.Task, metadata store.TaskMetadata, captured string) Request {
	req := Request{
		HTML:           withBase(captured, metadata.URLOrigin),
		Width:          metadata.BrowserWindowWidth,
		Height:         metadata.BrowserWindowHeight,
		Scale:          metadata.DevicePixelRatio,
		CaptureElement: task.HasTarget(),
	}
	if req.Width <= 0 {
		req.Width = defaultWidth
	}
	if req.Height <= 0 {
		req.Height = defaultHeight
	}
	if req.Scale <= 0 {
		req.Scale = 1
	}
	return req
}

// withBase points relative asset URLs in the captured page at its origin.
func withBase(doc, origin string) string {
	if origin == "" || strings.Contains(strings.ToLower(doc), "<base") {
		return doc
	}
	base := `<base href="` + html.EscapeString(strings.TrimRight(origin, "/")+"/") + `">`
	lower := strings.ToLower(doc)
	if i := strings.Index(lower, "<head>"); i >= 0 {
		i += len("<head>")
		return doc[:i] + base + doc[i:]
	}
	return base + doc
}

type Chrome struct {
	timeout        time.Duration
	elementTimeout time.Duration
}

var _ Renderer = (*Chrome)(nil)

func NewChrome(timeout time.Duration) *Chrome {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chrome{timeout: timeout, elementTimeout: timeout / 6}
}

func chromePath() (string, error) {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrChromeMissing
}

func (c *Chrome) Render(ctx context.Context, req Request) (Result, error) {
	path, err := chromePath()
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Chrome options for headless mode in container
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var res Result
	err = chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(req.Width), int64(req.Height), chromedp.EmulateScale(req.Scale)),
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(req.HTML)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			res.Window, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("chrome window screenshot failed: %w", err)
	}

	if req.CaptureElement {
		elemCtx, cancel := context.WithTimeout(taskCtx, c.elementTimeout)
		defer cancel()
		err := chromedp.Run(elemCtx, chromedp.Screenshot(ElementSelector, &res.Element, chromedp.NodeVisible, chromedp.ByQuery))
		if err != nil {
			// The window shot is still useful without the element.
			zerolog.Ctx(ctx).Warn().Err(err).Msg("selected element screenshot failed")
			res.Element = nil
		}
	}
	return res, nil
}

// percentEncodeForDataURL encodes a string for use in a data URL
// Unlike url.QueryEscape, this properly encodes spaces as %20 for data URLs
func percentEncodeForDataURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// DecodePNGDataURL returns the image bytes of a base64 PNG data URL as
// produced by canvas.toDataURL.
func DecodePNGDataURL(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, ErrInvalidDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(raw) < 8 || string(raw[:8]) != "\x89PNG\r\n\x1a\n" {
		return nil, ErrInvalidDataURL
	}
	return raw, nil
}

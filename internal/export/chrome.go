package export

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// CaptureSelector is the element screenshotted on the capture page.
const CaptureSelector = "#card-capture"

// Default capture geometry in CSS pixels.
const (
	DefaultViewportWidth  = 600
	DefaultViewportHeight = 900
	DefaultSettle         = 300 * time.Millisecond
)

// prepareScript runs before capture: optional image CORS reload and
// transform reset, then wait for fonts, images and two animation frames.
const prepareScript = `(async (cors, neutralize) => {
  const el = document.querySelector(%q);
  if (!el) throw new Error("capture element missing");
  if (neutralize) el.style.transform = "none";
  const imgs = Array.from(el.querySelectorAll("img"));
  if (cors) {
    for (const img of imgs) {
      if (img.src.startsWith("data:") || img.crossOrigin === "anonymous") continue;
      img.crossOrigin = "anonymous";
      const src = img.src; img.src = ""; img.src = src;
    }
  }
  await Promise.all(imgs.map(img => img.decode ? img.decode().catch(() => {}) : null));
  if (document.fonts) await document.fonts.ready;
  await new Promise(r => requestAnimationFrame(() => r()));
  await new Promise(r => requestAnimationFrame(() => r()));
  const rect = el.getBoundingClientRect();
  return {x: rect.left + window.scrollX, y: rect.top + window.scrollY, width: rect.width, height: rect.height};
})(%t, %t)`

type clipRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ChromeCapturer screenshots the capture page in headless Chromium. One
// browser is shared per process; every attempt gets a fresh tab.
type ChromeCapturer struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	Width, Height int
	Settle        time.Duration
}

// NewChromeCapturer creates a capturer. With a non-empty wsURL it attaches
// to a remote browser (e.g. a chromedp/headless-shell container);
// otherwise a local Chromium is launched on first use.
func NewChromeCapturer(wsURL string) *ChromeCapturer {
	var allocCtx context.Context
	var cancel context.CancelFunc
	if wsURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), wsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Headless,
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.Flag("hide-scrollbars", true),
		)
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return &ChromeCapturer{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		Width:       DefaultViewportWidth,
		Height:      DefaultViewportHeight,
		Settle:      DefaultSettle,
	}
}

// Close shuts the browser down.
func (c *ChromeCapturer) Close() {
	c.mu.Lock()
	if c.cancelBrowser != nil {
		c.cancelBrowser()
		c.browserCtx, c.cancelBrowser = nil, nil
	}
	c.mu.Unlock()
	c.cancelAlloc()
}

// browser returns the shared browser context, starting it when needed or
// after it died.
func (c *ChromeCapturer) browser() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil && c.browserCtx.Err() == nil {
		return c.browserCtx, nil
	}

	ctx, cancel := chromedp.NewContext(c.allocCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("chrome start: %w", err)
	}
	c.browserCtx, c.cancelBrowser = ctx, cancel
	return ctx, nil
}

// Capture implements Capturer.
func (c *ChromeCapturer) Capture(ctx context.Context, target string, opts CaptureOptions) ([]byte, error) {
	browserCtx, err := c.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	scale := opts.PixelRatio
	if scale <= 0 {
		scale = 1
	}
	if opts.CacheBust {
		target = cacheBust(target)
	}

	format := page.CaptureScreenshotFormatPng
	if opts.Encoding == JPEG {
		format = page.CaptureScreenshotFormatJpeg
	}

	var rect clipRect
	var buf []byte
	actions := chromedp.Tasks{
		chromedp.EmulateViewport(int64(c.Width), int64(c.Height), chromedp.EmulateScale(scale)),
		network.Enable(),
		network.SetCacheDisabled(opts.CacheBust),
		chromedp.Navigate(target),
		chromedp.WaitVisible(CaptureSelector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(prepareScript, CaptureSelector, opts.CORS, opts.NeutralizeTransform), &rect,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) }),
		chromedp.Sleep(c.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if rect.Width <= 0 || rect.Height <= 0 {
				return fmt.Errorf("capture element has no size")
			}
			shot := page.CaptureScreenshot().
				WithFormat(format).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height, Scale: 1})
			if format == page.CaptureScreenshotFormatJpeg {
				shot = shot.WithQuality(92)
			}
			var err error
			buf, err = shot.Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(tabCtx, actions); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chrome capture: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chrome capture: %w", err)
	}
	return buf, nil
}

// cacheBust adds a unique query parameter to target.
func cacheBust(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("_cb", strconv.FormatInt(time.Now().UnixNano(), 36))
	u.RawQuery = q.Encode()
	return u.String()
}

package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"wawbook/config"
)

// Engine rasterizes one markup fragment at a fixed viewport. Consumed as a
// black box by the workers: markup and viewport in, raster bytes out.
type Engine interface {
	RenderPage(ctx context.Context, markup string, width, height int) ([]byte, error)
	Close() error
}

// RodEngine drives one long-lived headless browser shared across jobs. Each
// page render opens an isolated incognito context so leaked state in one
// page cannot corrupt another; contexts are always closed.
type RodEngine struct {
	cfg *config.EngineConfig
	log *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	// admission control for simultaneously open contexts
	slots chan struct{}
}

func NewRodEngine(cfg *config.EngineConfig, log *zap.Logger) *RodEngine {
	contexts := cfg.Contexts
	if contexts <= 0 {
		contexts = 1
	}
	return &RodEngine{
		cfg:   cfg,
		log:   log.Named("engine"),
		slots: make(chan struct{}, contexts),
	}
}

// ensureBrowser lazily launches and connects, once.
func (e *RodEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New()
	if len(e.cfg.BrowserBin) > 0 {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	e.log.Info("Browser connected")
	e.browser = browser
	return browser, nil
}

func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

// RenderPage rasterizes markup at the given viewport. The navigation step
// has a hard timeout falling back to direct content injection; waits past
// the image bound still produce a screenshot.
func (e *RodEngine) RenderPage(ctx context.Context, markup string, width, height int) ([]byte, error) {
	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("opening browsing context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	if err := e.loadContent(page, markup); err != nil {
		return nil, err
	}
	e.settle(ctx, page)

	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing page: %w", err)
	}
	return shot, nil
}

// loadContent navigates to the markup with a hard timeout and degrades to
// direct content injection when navigation does not complete in time.
func (e *RodEngine) loadContent(page *rod.Page, markup string) error {
	navTimeout := time.Duration(e.cfg.NavigationTimeoutSec) * time.Second
	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(markup))

	err := page.Timeout(navTimeout).Navigate(url)
	if err == nil {
		err = page.Timeout(navTimeout).WaitLoad()
	}
	if err != nil {
		e.log.Warn("Navigation timed out, injecting content directly", zap.Error(err))
		if err := page.SetDocumentContent(markup); err != nil {
			return fmt.Errorf("injecting content: %w", err)
		}
	}
	return nil
}

// settle waits for document-ready side effects: a fixed delay, then a
// bounded wait for all images to report loaded dimensions. Exceeding the
// bound is logged, not fatal, the page is captured as is.
func (e *RodEngine) settle(ctx context.Context, page *rod.Page) {
	delay := time.Duration(e.cfg.SettleDelayMSec) * time.Millisecond
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	imgWait := time.Duration(e.cfg.ImageWaitTimeoutSec) * time.Second
	err := page.Timeout(imgWait).Wait(rod.Eval(
		`() => Array.from(document.images).every(i => i.complete && i.naturalWidth > 0)`))
	if err != nil {
		e.log.Warn("Images did not finish loading in time, capturing anyway", zap.Error(err))
	}
}

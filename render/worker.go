package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"wawbook/book"
	"wawbook/config"
	"wawbook/personalize"
	"wawbook/store"
)

// ContentLoader resolves a book id to its canonical content. The scheduler
// does not own book storage, the caller wires the lookup in.
type ContentLoader func(ctx context.Context, bookID string) (*book.Content, error)

// Worker polls the job store and renders claimed jobs on a bounded pool.
// Any failure inside a job marks the job failed, it never crashes the
// worker process.
type Worker struct {
	cfg     *config.RenderConfig
	jobs    JobStore
	engine  Engine
	cache   *PageCache
	objects store.ObjectStore
	load    ContentLoader
	log     *zap.Logger
	name    string
}

func NewWorker(cfg *config.RenderConfig, jobs JobStore, engine Engine, cache *PageCache, objects store.ObjectStore, load ContentLoader, log *zap.Logger) *Worker {
	host, _ := os.Hostname()
	return &Worker{
		cfg:     cfg,
		jobs:    jobs,
		engine:  engine,
		cache:   cache,
		objects: objects,
		load:    load,
		log:     log.Named("worker"),
		name:    fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// Run polls until the context is canceled. Claimed jobs execute on a pool
// bounded by the configured worker count, a separate ticker sweeps expired
// terminal jobs.
func (w *Worker) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.Queue.PollIntervalSec) * time.Second
	staleAfter := time.Duration(w.cfg.Queue.StaleAfterSec) * time.Second

	p := pool.New().WithMaxGoroutines(w.cfg.Queue.Workers)

	poll := time.NewTicker(interval)
	defer poll.Stop()
	sweep := time.NewTicker(10 * interval)
	defer sweep.Stop()

	w.log.Info("Worker started",
		zap.String("worker", w.name),
		zap.Int("jobs", w.cfg.Queue.Workers),
		zap.Duration("poll_interval", interval))

	for {
		select {
		case <-ctx.Done():
			p.Wait()
			w.log.Info("Worker stopped", zap.String("worker", w.name))
			return ctx.Err()

		case <-sweep.C:
			if n, err := w.jobs.Sweep(ctx, time.Now().UTC()); err != nil {
				w.log.Warn("Job sweep failed", zap.Error(err))
			} else if n > 0 {
				w.log.Info("Expired jobs swept", zap.Int("jobs", n))
			}

		case <-poll.C:
			job, err := w.jobs.Claim(ctx, w.name, staleAfter)
			if err != nil {
				w.log.Warn("Job claim failed", zap.Error(err))
				continue
			}
			if job == nil {
				continue
			}
			p.Go(func() {
				w.execute(ctx, job)
			})
		}
	}
}

// execute runs one claimed job to a terminal state.
func (w *Worker) execute(ctx context.Context, job *Job) {
	log := w.log.With(zap.String("job", job.ID), zap.String("book", job.BookID))
	log.Info("Job started", zap.Int("priority", job.Priority))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic", r))
			w.fail(ctx, job, fmt.Sprintf("panic: %v", r))
		}
	}()

	pages, err := w.renderJob(ctx, job, log)
	if err != nil {
		log.Error("Job failed", zap.Error(err))
		w.fail(ctx, job, err.Error())
		return
	}
	if err := w.jobs.Complete(ctx, job.ID, pages); err != nil {
		log.Error("Unable to finalize job", zap.Error(err))
		return
	}
	log.Info("Job completed", zap.Int("pages", len(pages)))
}

func (w *Worker) fail(ctx context.Context, job *Job, msg string) {
	if err := w.jobs.Fail(ctx, job.ID, msg); err != nil {
		w.log.Error("Unable to mark job failed", zap.String("job", job.ID), zap.Error(err))
	}
}

// renderJob renders a job's pages sequentially, updating progress after
// each page.
func (w *Worker) renderJob(ctx context.Context, job *Job, log *zap.Logger) (map[int]string, error) {
	content, err := w.load(ctx, job.BookID)
	if err != nil {
		return nil, fmt.Errorf("loading canonical content: %w", err)
	}

	resolved := personalize.Resolve(content, &job.Context, log)

	targets := resolved.Pages
	if job.DedicationOnly {
		targets = dedicationPages(content, resolved)
		log.Info("Restricting render to dedication pages", zap.Int("pages", len(targets)))
	}

	results := make(map[int]string, len(targets))
	for i := range targets {
		page := &targets[i]
		locator, err := w.renderPage(ctx, job, page)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", page.Index, err)
		}
		results[page.Index] = locator

		if err := w.jobs.UpdateProgress(ctx, job.ID, len(results), len(targets)); err != nil {
			log.Warn("Unable to update progress", zap.Error(err))
		}
	}
	return results, nil
}

func (w *Worker) renderPage(ctx context.Context, job *Job, page *personalize.PageResult) (string, error) {
	raster := w.cache.Get(ctx, job.BookID, page.Index, &job.Context)
	if raster == nil {
		var err error
		raster, err = w.engine.RenderPage(ctx, ComposePage(page), int(page.Width), int(page.Height))
		if err != nil {
			return "", err
		}
		w.cache.Put(ctx, job.BookID, page.Index, &job.Context, raster)
	}

	name, err := PageObjectName(w.cfg.PageNameTemplate, NameValues{
		Book: job.BookID,
		Job:  job.ID,
		Page: page.Index,
	})
	if err != nil {
		return "", err
	}

	locator, err := w.objects.Save(ctx, name, raster, "image/png")
	if err != nil {
		return "", fmt.Errorf("saving page raster: %w", err)
	}

	if w.cfg.ThumbnailWidth > 0 {
		if err := w.saveThumbnail(ctx, name, raster); err != nil {
			// preview-only artifact, the page itself is saved
			w.log.Warn("Unable to save thumbnail", zap.String("page", name), zap.Error(err))
		}
	}
	return locator, nil
}

// saveThumbnail downscales the raster for preview listings.
func (w *Worker) saveThumbnail(ctx context.Context, name string, raster []byte) error {
	thumb, err := Thumbnail(raster, w.cfg.ThumbnailWidth)
	if err != nil {
		return err
	}
	_, err = w.objects.Save(ctx, ThumbName(name), thumb, "image/png")
	return err
}

// Thumbnail downscales a page raster to the given width, keeping aspect.
func Thumbnail(raster []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raster))
	if err != nil {
		return nil, fmt.Errorf("decoding page raster: %w", err)
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, thumb); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func ThumbName(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[:idx] + ".thumb" + name[idx:]
	}
	return name + ".thumb"
}

// dedicationPages narrows a resolved book to the pages whose content uses
// the dedication variable, whether declared as a variable instance or typed
// literally into the text.
func dedicationPages(content *book.Content, resolved *personalize.Result) []personalize.PageResult {
	wanted := make(map[int]bool)
	for _, te := range content.Texts {
		if usesDedication(&te) {
			wanted[te.PageIndex] = true
		}
	}

	var pages []personalize.PageResult
	for _, p := range resolved.Pages {
		if wanted[p.Index] {
			pages = append(pages, p)
		}
	}
	return pages
}

const dedicationToken = "{dedication}"

func usesDedication(te *book.TextElement) bool {
	for _, seg := range te.Segments {
		for _, v := range seg.Variables {
			if v == "dedication" {
				return true
			}
		}
		if strings.Contains(seg.Text, dedicationToken) {
			return true
		}
	}
	return strings.Contains(te.Content, dedicationToken)
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"wawbook/personalize"
	"wawbook/render"
	"wawbook/state"
	"wawbook/store"
)

// Preview instantiates one personalized copy of an ingested book. By default
// pages render synchronously through a local engine, with --queue the work is
// handed to the job store for the worker fleet instead.
func Preview(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("preview")

	bookID := cmd.Args().Get(0)
	if len(bookID) == 0 {
		return errors.New("no book id has been specified")
	}

	persFile := cmd.Args().Get(1)
	if len(persFile) == 0 {
		return errors.New("no personalization file has been specified")
	}
	if persFile, err = filepath.Abs(persFile); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	pctx, err := loadPersonalization(persFile)
	if err != nil {
		return err
	}

	log.Info("Preview starting", zap.String("book", bookID), zap.String("personalization", persFile))
	defer func(start time.Time) {
		log.Info("Preview completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	if cmd.Bool("queue") {
		return enqueuePreview(ctx, cmd, env, bookID, pctx, log)
	}

	objects, err := store.NewFileStore(env.Cfg.Store.Root, log)
	if err != nil {
		return err
	}
	content, err := Loader(objects)(ctx, bookID)
	if err != nil {
		return err
	}

	engine := render.NewRodEngine(&env.Cfg.Render.Engine, log)
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()

	resolved := personalize.Resolve(content, pctx, log)
	for i := range resolved.Pages {
		page := &resolved.Pages[i]
		if err := previewPage(ctx, env, engine, objects, bookID, page, log); err != nil {
			return fmt.Errorf("rendering page %d: %w", page.Index, err)
		}
	}

	log.Info("Preview pages stored", zap.Int("pages", len(resolved.Pages)))
	return nil
}

func previewPage(ctx context.Context, env *state.LocalEnv, engine render.Engine, objects store.ObjectStore, bookID string, page *personalize.PageResult, log *zap.Logger) error {
	raster, err := engine.RenderPage(ctx, render.ComposePage(page), int(page.Width), int(page.Height))
	if err != nil {
		return err
	}

	name, err := render.PageObjectName(env.Cfg.Render.PageNameTemplate, render.NameValues{
		Book: bookID,
		Job:  "preview",
		Page: page.Index,
	})
	if err != nil {
		return err
	}

	locator, err := objects.Save(ctx, name, raster, "image/png")
	if err != nil {
		return fmt.Errorf("saving page raster: %w", err)
	}
	log.Debug("Page stored", zap.Int("page", page.Index), zap.String("locator", locator))

	if width := env.Cfg.Render.ThumbnailWidth; width > 0 {
		thumb, err := render.Thumbnail(raster, width)
		if err != nil {
			return err
		}
		if _, err := objects.Save(ctx, render.ThumbName(name), thumb, "image/png"); err != nil {
			return fmt.Errorf("saving thumbnail: %w", err)
		}
	}
	return nil
}

// enqueuePreview hands the copy to the worker fleet instead of rendering
// locally.
func enqueuePreview(ctx context.Context, cmd *cli.Command, env *state.LocalEnv, bookID string, pctx *personalize.Context, log *zap.Logger) error {
	jobs, err := render.OpenStore(ctx, &env.Cfg.Render.Queue, log)
	if err != nil {
		return err
	}
	defer jobs.Close()

	job, err := render.Enqueue(ctx, jobs, &render.Request{
		BookID:         bookID,
		Context:        *pctx,
		DedicationOnly: cmd.Bool("dedication-only"),
		Priority:       int(cmd.Int("priority")),
	}, time.Duration(env.Cfg.Render.Queue.ExpireAfterSec)*time.Second)
	if err != nil {
		return err
	}

	log.Info("Render job enqueued",
		zap.String("job", job.ID),
		zap.String("book", job.BookID),
		zap.Int("priority", job.Priority),
		zap.Bool("dedication_only", job.DedicationOnly))
	return nil
}

// loadPersonalization reads a customer request from a YAML (or JSON) file.
func loadPersonalization(path string) (*personalize.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read personalization file: %w", err)
	}
	var pctx personalize.Context
	if err := yaml.Unmarshal(data, &pctx); err != nil {
		return nil, fmt.Errorf("unable to parse personalization file %s: %w", path, err)
	}
	return &pctx, nil
}

// Package ingest orchestrates the offline pipeline: parse both source
// packages, merge them into the canonical model and persist it through the
// object store. It also hosts the synchronous preview path.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"wawbook/book"
	"wawbook/dtp"
	"wawbook/reflow"
	"wawbook/render"
	"wawbook/state"
	"wawbook/store"
)

// ContentKey is the object store location of a book's canonical model.
func ContentKey(bookID string) string {
	return "books/" + bookID + "/content.json"
}

// Loader adapts the object store to the scheduler's content lookup.
func Loader(objects store.ObjectStore) render.ContentLoader {
	return func(ctx context.Context, bookID string) (*book.Content, error) {
		data, err := objects.Download(ctx, ContentKey(bookID))
		if err != nil {
			return nil, fmt.Errorf("loading canonical content for %s: %w", bookID, err)
		}
		return book.Decode(data)
	}
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("ingest")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no source package has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	layoutSrc := cmd.Args().Get(1)
	if len(layoutSrc) == 0 {
		return errors.New("no layout package has been specified")
	}
	if layoutSrc, err = filepath.Abs(layoutSrc); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	resolveCodePage(cmd, env, log)

	log.Info("Ingest starting", zap.String("source", src), zap.String("layout", layoutSrc))
	defer func(start time.Time) {
		log.Info("Ingest completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	srcData, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("unable to read source package: %w", err)
	}
	layoutData, err := os.ReadFile(layoutSrc)
	if err != nil {
		return fmt.Errorf("unable to read layout package: %w", err)
	}

	doc, err := dtp.ReadPackage(srcData, dtp.Options{
		StyleDepthLimit: env.Cfg.Ingest.StyleDepthLimit,
		CodePage:        env.CodePage,
	}, log)
	if err != nil {
		return fmt.Errorf("unable to parse source package %s: %w", src, err)
	}

	layout, err := reflow.ReadPackage(layoutData, reflow.Options{CodePage: env.CodePage}, log)
	if err != nil {
		return fmt.Errorf("unable to parse layout package %s: %w", layoutSrc, err)
	}

	content := book.Merge(doc, layout, log)
	if id := cmd.String("id"); len(id) > 0 {
		content.ID = id
	}

	data, err := book.Encode(content)
	if err != nil {
		return fmt.Errorf("unable to encode canonical content: %w", err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("ingest/%s.json", content.ID), data)
	}

	objects, err := store.NewFileStore(env.Cfg.Store.Root, log)
	if err != nil {
		return err
	}

	key := ContentKey(content.ID)
	if !env.Overwrite {
		if _, err := objects.Download(ctx, key); err == nil {
			return fmt.Errorf("book %s already exists, use --overwrite to replace it", content.ID)
		}
	}

	locator, err := objects.Save(ctx, key, data, "application/json")
	if err != nil {
		return fmt.Errorf("unable to store canonical content: %w", err)
	}

	log.Info("Canonical content stored",
		zap.String("book", content.ID),
		zap.String("locator", locator),
		zap.Int("bytes", len(data)))
	return nil
}

// resolveCodePage picks the forced zip name encoding: the command line flag
// wins over configuration, an unknown charset is ignored with a warning.
func resolveCodePage(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) {
	cp := cmd.String("force-zip-cp")
	if len(cp) == 0 {
		cp = env.Cfg.Ingest.ZipNamesEncoding
	}
	if len(cp) == 0 {
		return
	}

	enc, err := ianaindex.IANA.Encoding(cp)
	if err != nil {
		log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
		return
	}
	env.CodePage = enc

	n, _ := ianaindex.IANA.Name(enc)
	log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
}

package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"wawbook/config"
	"wawbook/ingest"
	"wawbook/render"
	"wawbook/state"
	"wawbook/store"
)

// Backend credentials are not kept in the configuration file, they come from
// the process environment, optionally seeded from a dotenv file.
const (
	envPostgresPassword = "WAWBOOK_POSTGRES_PASSWORD"
	envCachePassword    = "WAWBOOK_CACHE_PASSWORD"
)

// runWorker connects the scheduler to the configured backends and polls
// until the process is interrupted.
func runWorker(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("worker")

	if file := cmd.String("env-file"); len(file) > 0 {
		if err := godotenv.Load(file); err == nil {
			log.Debug("Environment loaded", zap.String("file", file))
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Unable to load environment file", zap.String("file", file), zap.Error(err))
		}
	}
	if v, ok := os.LookupEnv(envPostgresPassword); ok {
		env.Cfg.Render.Queue.Postgres.Password = config.SecretString(v)
	}
	if v, ok := os.LookupEnv(envCachePassword); ok {
		env.Cfg.Render.Cache.Password = config.SecretString(v)
	}

	objects, err := store.NewFileStore(env.Cfg.Store.Root, log)
	if err != nil {
		return err
	}

	jobs, err := render.OpenStore(ctx, &env.Cfg.Render.Queue, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, jobs.Close())
	}()

	cache, err := render.NewPageCache(ctx, &env.Cfg.Render.Cache, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, cache.Close())
	}()

	engine := render.NewRodEngine(&env.Cfg.Render.Engine, log)
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()

	worker := render.NewWorker(&env.Cfg.Render, jobs, engine, cache, objects, ingest.Loader(objects), log)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

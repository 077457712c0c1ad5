// Package state defines shared program state.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"schemac/archive"
	"schemac/config"
	"schemac/schema"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// Metrics collects memo and repo metrics of this run.
	Metrics *prometheus.Registry

	// set by OpenRepo
	Source *archive.Source
	Repo   *schema.Repo

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:   time.Now(),
		Metrics: prometheus.NewRegistry(),
	}
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// OpenRepo opens schema source (directory or zip bundle) and creates schema
// repo for it using current configuration. Extension search paths given
// explicitly replace configured ones.
func (e *LocalEnv) OpenRepo(home string, extensions []string) error {
	if e.Cfg == nil || e.Log == nil {
		return errors.New("environment is not initialized")
	}
	if e.Repo != nil {
		return errors.New("schema repo is already open")
	}
	if len(home) == 0 {
		home = e.Cfg.Schema.Home
	}
	if len(home) == 0 {
		return errors.New("no schema home has been specified")
	}
	if extensions == nil {
		extensions = e.Cfg.Schema.Extensions
	}

	src, err := archive.Open(home)
	if err != nil {
		return fmt.Errorf("unable to open schema source: %w", err)
	}

	opts := []schema.Option{
		schema.WithLogger(e.Log.Named("schema")),
		schema.WithName(src.Name()),
		schema.WithExtensions(extensions...),
		schema.WithSuffix(e.Cfg.Schema.Suffix),
		schema.WithMarker(e.Cfg.Schema.ExtensionMarker),
		schema.WithRefresh(src.Reopen),
	}
	if e.Metrics != nil {
		opts = append(opts, schema.WithMetrics(e.Metrics))
	}
	repo, err := schema.New(src.FS, opts...)
	if err != nil {
		return multierr.Append(fmt.Errorf("unable to create schema repo: %w", err), src.Close())
	}

	e.Log.Debug("Schema source opened", zap.String("source", src.Name()), zap.Stringer("kind", src.Kind), zap.Strings("extensions", extensions))
	e.Source, e.Repo = src, repo
	return nil
}

// CloseRepo releases schema repo and its source.
func (e *LocalEnv) CloseRepo() error {
	if e.Repo != nil {
		e.Repo.Close()
		e.Repo = nil
	}
	var err error
	if e.Source != nil {
		err = e.Source.Close()
		e.Source = nil
	}
	return err
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

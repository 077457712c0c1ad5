package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"schemac/schema"
	"schemac/state"
)

// Run is "watch" command action. It resolves schema once and keeps it
// current until interrupted.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	var exts []string
	if cmd.IsSet("ext") {
		exts = cmd.StringSlice("ext")
	}
	if err := env.OpenRepo(cmd.Args().Get(0), exts); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, env.CloseRepo())
	}()

	// broken schema at start is not fatal, it may be fixed while we watch
	if snap, err := env.Repo.Snapshot(); err != nil {
		log.Error("Unable to resolve schema, waiting for changes", zap.Error(err))
	} else {
		log.Info("Schema resolved", zap.String("version", snap.Version.Version), zap.Int("classes", len(snap.Classes)), zap.Int("objects", len(snap.Objects)))
	}

	debounce := env.Cfg.Watch.Debounce
	if cmd.IsSet("debounce") {
		debounce = cmd.Duration("debounce")
	}
	w, err := New(env.Source.Path, env.Repo,
		WithLogger(log),
		WithDebounce(debounce),
		WithSuffix(env.Cfg.Schema.Suffix),
		WithMetrics(env.Metrics),
		WithCallback(func(snap *schema.Snapshot, err error) {
			if err == nil && env.Rpt != nil {
				env.Rpt.StoreData("schema/snapshot.txt", []byte(snap.String()))
			}
		}))
	if err != nil {
		return fmt.Errorf("unable to watch schema source: %w", err)
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	listen := env.Cfg.Watch.MetricsListen
	if cmd.IsSet("metrics") {
		listen = cmd.String("metrics")
	}
	if len(listen) > 0 {
		_, stop, er := serveMetrics(listen, env.Metrics, log)
		if er != nil {
			return er
		}
		defer func() {
			err = multierr.Append(err, stop())
		}()
	}

	log.Info("Watching schema source, interrupt to stop", zap.String("source", env.Source.Name()), zap.Duration("debounce", debounce))
	return w.Run(ctx)
}

// serveMetrics exposes gathered metrics over HTTP. Returns actual listening
// address and function to stop the server.
func serveMetrics(addr string, g prometheus.Gatherer, log *zap.Logger) (string, func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("unable to listen for metrics requests: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
		}
		close(done)
	}()
	log.Info("Serving metrics", zap.String("address", "http://"+ln.Addr().String()+"/metrics"))

	return ln.Addr().String(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return multierr.Append(srv.Shutdown(ctx), <-done)
	}, nil
}

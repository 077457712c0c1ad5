package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"schemac/state"
)

// Run is "export" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("export")

	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

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

	snap, err := env.Repo.Snapshot()
	if err != nil {
		return fmt.Errorf("unable to resolve schema: %w", err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("schema/snapshot.txt", []byte(snap.String()))
	}

	dst, err := destination(cmd.Args().Get(1), env.Cfg.Export.OutputNameTemplate, snap.Home, func(tmpl, source string) (string, error) {
		return OutputName(tmpl, snap, source)
	})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("unable to create destination directory: %w", err)
		}
	}

	log.Info("Exporting schema", zap.String("source", env.Source.Name()), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Exporting completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	overwrite := env.Cfg.Export.Overwrite || cmd.Bool("overwrite")
	return Write(ctx, dst, snap, overwrite, log)
}

// destination decides on database file name. Argument with database
// extension is used as is, anything else is a directory for generated name.
func destination(arg, tmpl, source string, name func(tmpl, source string) (string, error)) (string, error) {
	if slices.Contains(knownExts, strings.ToLower(filepath.Ext(arg))) {
		return arg, nil
	}
	dir := arg
	if len(dir) == 0 {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	fname, err := name(tmpl, source)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fname), nil
}

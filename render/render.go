// Package render implements "compose" command: resolves schema and writes
// selected part of it as JSON or YAML.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"schemac/common"
	"schemac/compose"
	"schemac/schema"
	"schemac/state"
)

// Selection describes what part of resolved schema to output.
type Selection struct {
	Section common.Section
	// Only is extension name filter, nil means all extensions
	Only []string
}

// Select collects requested part of schema from a single repo snapshot.
// Result shares data with the published snapshot and must not be modified.
func Select(repo *schema.Repo, sel Selection) (any, error) {
	snap, err := repo.Snapshot()
	if err != nil {
		return nil, err
	}
	snap = snap.Filter(sel.Only)

	switch sel.Section {
	case common.SectionVersion:
		return map[string]any{"version": snap.Version.Version}, nil
	case common.SectionCategories:
		return snap.Categories, nil
	case common.SectionDictionary:
		return snap.Dictionary, nil
	case common.SectionObjects:
		return snap.Objects, nil
	case common.SectionClasses:
		return snap.Classes, nil
	case common.SectionAll:
		return map[string]any{
			"version":    snap.Version.Version,
			"categories": snap.Categories,
			"dictionary": snap.Dictionary,
			"objects":    snap.Objects,
			"classes":    snap.Classes,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported section %s", sel.Section)
	}
}

// Write serializes doc to w. Map keys are always sorted, so output is stable
// between runs.
func Write(w io.Writer, doc any, format common.OutputFmt, indent int) error {
	switch format {
	case common.OutputFmtJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if indent > 0 {
			enc.SetIndent("", strings.Repeat(" ", indent))
		}
		return enc.Encode(doc)
	case common.OutputFmtYAML:
		enc := yaml.NewEncoder(w)
		if indent > 0 {
			enc.SetIndent(indent)
		}
		if err := enc.Encode(plain(doc)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %s", format)
	}
}

// plain replaces json.Number values with native numbers, yaml encoder would
// quote them otherwise.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case compose.Fragment:
		return plain(map[string]any(t))
	case map[string]compose.Fragment:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(map[string]any(e))
		}
		return out
	default:
		return v
	}
}

// Run is "compose" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("compose")

	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format := env.Cfg.Output.Format
	if cmd.IsSet("to") {
		if format, err = common.ParseOutputFmt(cmd.String("to")); err != nil {
			return err
		}
	}
	section, err := common.ParseSection(cmd.String("section"))
	if err != nil {
		return err
	}
	sel := Selection{Section: section}
	switch {
	case cmd.Bool("base-only"):
		sel.Only = []string{}
	case cmd.IsSet("only"):
		sel.Only = cmd.StringSlice("only")
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

	log.Info("Composing schema", zap.String("source", env.Source.Name()), zap.Stringer("section", section), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Composing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	snap, err := env.Repo.Snapshot()
	if err != nil {
		return fmt.Errorf("unable to resolve schema: %w", err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("schema/snapshot.txt", []byte(snap.String()))
		if err := env.Rpt.StoreFS("schema/source", env.Source.Name(), env.Source.FS); err != nil {
			log.Warn("Unable to store schema source in debug report", zap.Error(err))
		}
	}

	doc, err := Select(env.Repo, sel)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		return Write(os.Stdout, doc, format, env.Cfg.Output.Indent)
	}
	if filepath.Ext(dst) == "" {
		dst += format.Ext()
	}
	return writeFile(dst, doc, format, env.Cfg.Output.Indent, log)
}

func writeFile(dst string, doc any, format common.OutputFmt, indent int, log *zap.Logger) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create destination directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create destination file '%s': %w", dst, err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
		if err != nil {
			err = multierr.Append(err, os.Remove(dst))
		}
	}()

	if err := Write(out, doc, format, indent); err != nil {
		return fmt.Errorf("unable to write '%s': %w", dst, err)
	}
	log.Info("Schema written", zap.String("file", dst))
	return nil
}

// Package export writes resolved schema snapshot into SQLite database so it
// can be queried with ordinary tools.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"schemac/compose"
	"schemac/schema"
	"schemac/utils/debug"
)

const ddl = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE categories (
	name       TEXT PRIMARY KEY,
	uid        INTEGER,
	caption    TEXT,
	extension  TEXT,
	definition TEXT NOT NULL
);
CREATE TABLE objects (
	name       TEXT PRIMARY KEY,
	caption    TEXT,
	extension  TEXT,
	definition TEXT NOT NULL
);
CREATE TABLE classes (
	name       TEXT PRIMARY KEY,
	uid        INTEGER,
	category   TEXT,
	caption    TEXT,
	extension  TEXT,
	definition TEXT NOT NULL
);
CREATE TABLE attributes (
	owner_kind  TEXT NOT NULL,
	owner       TEXT NOT NULL,
	name        TEXT NOT NULL,
	requirement TEXT,
	type        TEXT,
	extension   TEXT,
	definition  TEXT NOT NULL,
	PRIMARY KEY (owner_kind, owner, name)
);
CREATE INDEX classes_uid ON classes (uid);
CREATE INDEX attributes_name ON attributes (name);
`

// Owner kinds of attributes table rows.
const (
	OwnerDictionary = "dictionary"
	OwnerObject     = "object"
	OwnerClass      = "class"
)

// Write creates database at dst and fills it from the snapshot. Existing
// file is replaced only when overwrite is set. Partially written database is
// removed on failure.
func Write(ctx context.Context, dst string, snap *schema.Snapshot, overwrite bool, log *zap.Logger) (err error) {
	if _, err := os.Stat(dst); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists (%s)", dst)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("unable to remove existing output file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	conn, err := sqlite.OpenConn(dst, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("unable to create database: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()
	conn.SetInterrupt(ctx.Done())

	start := time.Now()
	if err := write(conn, snap); err != nil {
		return err
	}
	log.Debug("Schema exported",
		zap.String("file", dst),
		zap.Int("objects", len(snap.Objects)),
		zap.Int("classes", len(snap.Classes)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func write(conn *sqlite.Conn, snap *schema.Snapshot) (err error) {
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return fmt.Errorf("unable to create tables: %w", err)
	}

	defer sqlitex.Save(conn)(&err)

	exts := make([]string, 0, len(snap.Extensions))
	for _, e := range snap.Extensions {
		exts = append(exts, e.Name)
	}
	for _, kv := range [][2]string{
		{"version", snap.Version.Version},
		{"session", snap.Session.String()},
		{"source", snap.Home},
		{"built", snap.Built.UTC().Format(time.RFC3339)},
		{"extensions", strings.Join(exts, ",")},
	} {
		if err := exec(conn, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}

	cats := snap.Categories.Attributes()
	for _, name := range debug.SortedKeys(cats) {
		c, _ := cats[name].(map[string]any)
		def, err := definition(cats[name])
		if err != nil {
			return err
		}
		if err := exec(conn, `INSERT INTO categories (name, uid, caption, extension, definition) VALUES (?, ?, ?, ?, ?)`,
			name, uid(c), text(c, compose.KeyCaption), text(c, compose.KeyExtension), def); err != nil {
			return err
		}
	}

	if err := writeAttributes(conn, OwnerDictionary, OwnerDictionary, snap.Dictionary); err != nil {
		return err
	}

	for _, name := range debug.SortedKeys(snap.Objects) {
		f := snap.Objects[name]
		def, err := definition(f)
		if err != nil {
			return err
		}
		if err := exec(conn, `INSERT INTO objects (name, caption, extension, definition) VALUES (?, ?, ?, ?)`,
			name, text(f, compose.KeyCaption), text(f, compose.KeyExtension), def); err != nil {
			return err
		}
		if err := writeAttributes(conn, OwnerObject, name, f); err != nil {
			return err
		}
	}

	for _, name := range debug.SortedKeys(snap.Classes) {
		f := snap.Classes[name]
		def, err := definition(f)
		if err != nil {
			return err
		}
		if err := exec(conn, `INSERT INTO classes (name, uid, category, caption, extension, definition) VALUES (?, ?, ?, ?, ?, ?)`,
			name, uid(f), text(f, compose.KeyCategory), text(f, compose.KeyCaption), text(f, compose.KeyExtension), def); err != nil {
			return err
		}
		if err := writeAttributes(conn, OwnerClass, name, f); err != nil {
			return err
		}
	}
	return nil
}

func writeAttributes(conn *sqlite.Conn, kind, owner string, f compose.Fragment) error {
	attrs := f.Attributes()
	for _, name := range debug.SortedKeys(attrs) {
		a, _ := attrs[name].(map[string]any)
		def, err := definition(attrs[name])
		if err != nil {
			return err
		}
		if err := exec(conn, `INSERT INTO attributes (owner_kind, owner, name, requirement, type, extension, definition) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			kind, owner, name, text(a, "requirement"), text(a, compose.KeyType), text(a, compose.KeyExtension), def); err != nil {
			return err
		}
	}
	return nil
}

func exec(conn *sqlite.Conn, query string, args ...any) error {
	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("unable to insert %v: %w", args[:2], err)
	}
	return nil
}

func definition(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("unable to serialize definition: %w", err)
	}
	return string(data), nil
}

// text returns string value or nil, so absent values are stored as NULL.
func text(m map[string]any, key string) any {
	if s, ok := m[key].(string); ok {
		return s
	}
	return nil
}

func uid(m map[string]any) any {
	if n, ok := schema.UID(m); ok {
		return n
	}
	return nil
}

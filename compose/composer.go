// Package compose turns a directory tree of JSON schema fragments into a
// resolved schema: it walks the tree, resolves "$include" directives through a
// memo table and deep-merges extension overlays onto the base tree.
package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"schemac/memo"
)

// Layout of a schema home (and of every extension directory).
const (
	VersionFile    = "version.json"
	CategoriesFile = "categories.json"
	DictionaryFile = "dictionary.json"
	ClassesDir     = "events"
	ObjectsDir     = "objects"

	DefaultSuffix  = ".json"
	DefaultVersion = "0.0.0"

	// DefaultTable is the default memo table name.
	DefaultTable = "fragments"
)

// Composer resolves schema fragments of a single schema home. Resolution
// passes are serialized, the memo table is shared by all of them until
// Cleanup.
type Composer struct {
	home      fs.FS
	log       *zap.Logger
	suffix    string
	registry  *memo.Registry[Fragment]
	tableName string

	mu    sync.Mutex
	table *memo.Table[Fragment]
}

// Option configures Composer.
type Option func(*Composer)

// WithLogger sets logger, default is no logging.
func WithLogger(log *zap.Logger) Option {
	return func(c *Composer) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSuffix changes suffix of schema files, default is ".json".
func WithSuffix(suffix string) Option {
	return func(c *Composer) {
		if len(suffix) > 0 {
			c.suffix = suffix
		}
	}
}

// WithMemo makes composer keep its memo table in the provided registry under
// the provided name. By default every composer has a private registry.
func WithMemo(reg *memo.Registry[Fragment], table string) Option {
	return func(c *Composer) {
		if reg != nil {
			c.registry = reg
		}
		if len(table) > 0 {
			c.tableName = table
		}
	}
}

// New creates composer for the schema home and ensures its memo table exists.
func New(home fs.FS, opts ...Option) (*Composer, error) {
	if home == nil {
		return nil, errors.New("schema home is not specified")
	}
	c := &Composer{
		home:      home,
		log:       zap.NewNop(),
		suffix:    DefaultSuffix,
		tableName: DefaultTable,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = memo.NewRegistry[Fragment](nil)
	}
	if err := c.ensure(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensure (re)creates memo table, must be called with c.mu held or before
// composer is shared.
func (c *Composer) ensure() (err error) {
	if c.table, err = c.registry.Ensure(c.tableName, c); err != nil {
		return fmt.Errorf("unable to prepare memo table: %w", err)
	}
	return nil
}

// Memo returns memo table of the composer.
func (c *Composer) Memo() *memo.Table[Fragment] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

// Cleanup drops all memoized fragments, next pass reads everything from disk.
func (c *Composer) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Clear()
}

// Close releases memo table.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Release(c.tableName, c)
}

// Version is content of version descriptor.
type Version struct {
	Version string `json:"version" yaml:"version"`
	parsed  *semver.Version
}

// Semver returns parsed version, nil if version string is not valid semantic
// version.
func (v Version) Semver() *semver.Version {
	return v.parsed
}

// ReadVersion reads version descriptor. Absent descriptor is not an error,
// default version is returned instead.
func (c *Composer) ReadVersion() (Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := readFragment(c.home, VersionFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("Schema version file not found, using default", zap.String("file", VersionFile), zap.String("version", DefaultVersion))
			return newVersion(DefaultVersion), nil
		}
		return Version{}, err
	}
	s, ok := f["version"].(string)
	if !ok {
		return Version{}, newError(MalformedInput, VersionFile, errors.New(`"version" must be a string`))
	}
	v := newVersion(s)
	if v.parsed == nil {
		c.log.Warn("Schema version is not a semantic version", zap.String("version", s))
	}
	return v, nil
}

func newVersion(s string) Version {
	v := Version{Version: s}
	if sv, err := semver.NewVersion(s); err == nil {
		v.parsed = sv
	}
	return v
}

// ReadCategories loads base categories and overlays categories of every
// extension in order.
func (c *Composer) ReadCategories(exts []Extension) (Fragment, error) {
	return c.readOverlaid(CategoriesFile, exts)
}

// ReadDictionary loads base dictionary and overlays dictionary of every
// extension in order.
func (c *Composer) ReadDictionary(exts []Extension) (Fragment, error) {
	return c.readOverlaid(DictionaryFile, exts)
}

func (c *Composer) readOverlaid(name string, exts []Extension) (Fragment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc, err := readFragment(c.home, name)
	if err != nil {
		return nil, err
	}
	if err := checkAttributes(name, acc); err != nil {
		return nil, err
	}
	for _, ext := range exts {
		en := path.Join(ext.Dir, name)
		if !isRegular(c.home, en) {
			c.log.Debug("Nothing to overlay", zap.String("extension", ext.Name), zap.Error(newError(MissingOptional, en, nil)))
			continue
		}
		f, err := readFragment(c.home, en)
		if err != nil {
			return nil, err
		}
		if err := checkAttributes(en, f); err != nil {
			return nil, err
		}
		acc = DeepMerge(acc, ext.stamp(f))
	}
	return acc, nil
}

func checkAttributes(name string, f Fragment) error {
	if v, ok := f[KeyAttributes]; ok {
		if _, ok := v.(map[string]any); !ok {
			return newError(MalformedInput, name, fmt.Errorf("%q must be an object", KeyAttributes))
		}
	}
	return nil
}

// ReadObjects resolves all objects of the base tree and extensions.
func (c *Composer) ReadObjects(exts []Extension) (map[string]Fragment, error) {
	return c.readTree(ObjectsDir, exts)
}

// ReadClasses resolves all event classes of the base tree and extensions.
func (c *Composer) ReadClasses(exts []Extension) (map[string]Fragment, error) {
	return c.readTree(ClassesDir, exts)
}

func (c *Composer) readTree(dir string, exts []Extension) (map[string]Fragment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return nil, err
	}

	p := c.newPass()
	result := make(map[string]Fragment)

	err := walk(c.home, dir, c.suffix, func(name string) error {
		id, f, err := p.leaf("", name)
		if err != nil {
			return err
		}
		if _, ok := result[id]; ok {
			c.log.Debug("Type redefined, later definition wins", zap.String("type", id), zap.String("file", name))
		}
		result[id] = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ext := range exts {
		sub := path.Join(ext.Dir, dir)
		if !isDir(c.home, sub) {
			c.log.Debug("Nothing to overlay", zap.String("extension", ext.Name), zap.Error(newError(MissingOptional, sub, nil)))
			continue
		}
		err := walk(c.home, sub, c.suffix, func(name string) error {
			id, f, err := p.leaf(ext.Dir, name)
			if err != nil {
				return err
			}
			f = ext.stamp(f)
			if base, ok := result[id]; ok {
				result[id] = DeepMerge(base, f)
				return nil
			}
			f[KeyExtension] = ext.Name
			result[id] = f
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	c.log.Debug("Schema tree resolved", zap.String("dir", dir), zap.Int("types", len(result)), zap.Int("extensions", len(exts)), zap.Int("memo", c.table.Size()))
	return result, nil
}

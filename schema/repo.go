// Package schema keeps resolved schema of one schema home and serves
// consistent snapshots of it to concurrent readers.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"schemac/compose"
	"schemac/memo"
)

// ErrNotFound is returned by lookups when requested item does not exist.
var ErrNotFound = errors.New("not found")

// Repo is a resolution session over a schema home. All mutations (reload,
// cleanup, extension changes) are serialized, readers always observe fully
// resolved snapshot.
type Repo struct {
	home     fs.FS
	name     string
	log      *zap.Logger
	paths    []string
	marker   string
	suffix   string
	registry *memo.Registry[compose.Fragment]
	promReg  prometheus.Registerer
	refresh  func() error

	comp    *compose.Composer
	metrics *repoMetrics

	mu   sync.Mutex
	exts []compose.Extension
	snap atomic.Pointer[Snapshot]
	// set by Reload and Cleanup, home is refreshed before next resolution
	stale bool
}

// Option configures Repo.
type Option func(*Repo)

// WithLogger sets logger, default is no logging.
func WithLogger(log *zap.Logger) Option {
	return func(r *Repo) {
		if log != nil {
			r.log = log
		}
	}
}

// WithName sets schema home description used in logs and dumps.
func WithName(name string) Option {
	return func(r *Repo) {
		r.name = name
	}
}

// WithExtensions sets extension search paths, relative to schema home.
func WithExtensions(paths ...string) Option {
	return func(r *Repo) {
		r.paths = slices.Clone(paths)
	}
}

// WithMarker sets name of extension descriptor file.
func WithMarker(marker string) Option {
	return func(r *Repo) {
		r.marker = marker
	}
}

// WithSuffix sets suffix of schema files.
func WithSuffix(suffix string) Option {
	return func(r *Repo) {
		r.suffix = suffix
	}
}

// WithMemo makes repo keep its memo table in the provided registry.
func WithMemo(reg *memo.Registry[compose.Fragment]) Option {
	return func(r *Repo) {
		r.registry = reg
	}
}

// WithRefresh sets function called before schema is resolved again after
// Reload or Cleanup. Sources which cache content (zip bundles) use it to
// pick up changes.
func WithRefresh(fn func() error) Option {
	return func(r *Repo) {
		r.refresh = fn
	}
}

// WithMetrics registers repo and memo metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Repo) {
		r.promReg = reg
	}
}

// New creates repo for the schema home and discovers configured extensions.
// Nothing is resolved until the first read.
func New(home fs.FS, opts ...Option) (*Repo, error) {
	r := &Repo{
		home:   home,
		log:    zap.NewNop(),
		marker: compose.DefaultMarker,
		suffix: compose.DefaultSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = memo.NewRegistry[compose.Fragment](r.promReg)
	}

	var err error
	if r.metrics, err = newRepoMetrics(r.promReg); err != nil {
		return nil, fmt.Errorf("unable to register repo metrics: %w", err)
	}
	if r.comp, err = compose.New(home,
		compose.WithLogger(r.log.Named("compose")),
		compose.WithSuffix(r.suffix),
		compose.WithMemo(r.registry, compose.DefaultTable),
	); err != nil {
		return nil, err
	}
	if r.exts, err = compose.Discover(home, r.paths, r.marker, r.log.Named("discover")); err != nil {
		r.comp.Close()
		return nil, fmt.Errorf("unable to discover extensions: %w", err)
	}
	r.log.Debug("Schema repo created", zap.String("home", r.name), zap.Strings("search", r.paths), zap.Int("extensions", len(r.exts)))
	return r, nil
}

// Close releases memo table. Repo must not be used afterwards.
func (r *Repo) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Store(nil)
	r.comp.Close()
}

// Extensions returns currently discovered extensions.
func (r *Repo) Extensions() []compose.Extension {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.exts)
}

// Memo returns statistics of the memo table.
func (r *Repo) Memo() *memo.Statistics {
	return r.comp.Memo().Stats()
}

// SetExtensions replaces extension search paths and re-discovers
// extensions. Session becomes dirty, the next read resolves the schema
// again. On error the repo is left unchanged.
func (r *Repo) SetExtensions(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts, err := compose.Discover(r.home, paths, r.marker, r.log.Named("discover"))
	if err != nil {
		return fmt.Errorf("unable to discover extensions: %w", err)
	}
	r.paths = slices.Clone(paths)
	r.exts = exts
	r.snap.Store(nil)
	r.log.Debug("Extensions changed", zap.Strings("search", paths), zap.Int("extensions", len(exts)))
	return nil
}

// Reload drops memoized fragments, refreshes schema home, discovers
// extensions again and resolves the whole schema. New snapshot is published
// only when everything succeeds, otherwise previous snapshot stays in place.
func (r *Repo) Reload() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.comp.Cleanup()
	r.stale = true
	return r.build()
}

// Cleanup drops memoized fragments and published snapshot, the next read
// resolves everything from disk.
func (r *Repo) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.comp.Cleanup()
	r.stale = true
	r.snap.Store(nil)
}

// Snapshot returns published snapshot resolving schema first if necessary.
func (r *Repo) Snapshot() (*Snapshot, error) {
	if s := r.snap.Load(); s != nil {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.snap.Load(); s != nil {
		return s, nil
	}
	return r.build()
}

// build must be called with r.mu held.
func (r *Repo) build() (*Snapshot, error) {
	start := time.Now()
	var s *Snapshot
	err := r.prepare()
	if err == nil {
		s, err = r.resolve()
	}
	r.metrics.observe(time.Since(start).Seconds(), s, err)
	if err != nil {
		r.log.Error("Schema resolution failed", zap.String("home", r.name), zap.Error(err))
		return nil, err
	}
	r.snap.Store(s)
	r.log.Info("Schema resolved",
		zap.String("home", r.name),
		zap.String("version", s.Version.Version),
		zap.Stringer("session", s.Session),
		zap.Int("extensions", len(s.Extensions)),
		zap.Int("objects", len(s.Objects)),
		zap.Int("classes", len(s.Classes)),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

// prepare refreshes stale home and rediscovers extensions, must be called
// with r.mu held.
func (r *Repo) prepare() error {
	if !r.stale {
		return nil
	}
	if r.refresh != nil {
		if err := r.refresh(); err != nil {
			return fmt.Errorf("unable to refresh schema home: %w", err)
		}
	}
	exts, err := compose.Discover(r.home, r.paths, r.marker, r.log.Named("discover"))
	if err != nil {
		return fmt.Errorf("unable to discover extensions: %w", err)
	}
	r.exts, r.stale = exts, false
	return nil
}

func (r *Repo) resolve() (*Snapshot, error) {
	var (
		s = &Snapshot{
			Session:    uuid.New(),
			Home:       r.name,
			Extensions: slices.Clone(r.exts),
		}
		err error
	)
	if s.Version, err = r.comp.ReadVersion(); err != nil {
		return nil, err
	}
	if s.Categories, err = r.comp.ReadCategories(r.exts); err != nil {
		return nil, err
	}
	if s.Dictionary, err = r.comp.ReadDictionary(r.exts); err != nil {
		return nil, err
	}
	if s.Objects, err = r.comp.ReadObjects(r.exts); err != nil {
		return nil, err
	}
	if s.Classes, err = r.comp.ReadClasses(r.exts); err != nil {
		return nil, err
	}
	s.Built = time.Now()
	return s, nil
}

// Version returns schema version.
func (r *Repo) Version() (compose.Version, error) {
	s, err := r.Snapshot()
	if err != nil {
		return compose.Version{}, err
	}
	return s.Version, nil
}

// Categories returns categories. When exts is not nil only categories and
// attributes of base schema and of listed extensions are returned.
func (r *Repo) Categories(exts []string) (compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return newExtensionSet(exts).fragment(s.Categories), nil
}

// Dictionary returns attribute dictionary filtered as Categories.
func (r *Repo) Dictionary(exts []string) (compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return newExtensionSet(exts).fragment(s.Dictionary), nil
}

// Objects returns resolved objects keyed by type name. When exts is not nil
// objects and attributes of extensions not listed are dropped.
func (r *Repo) Objects(exts []string) (map[string]compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return newExtensionSet(exts).types(s.Objects), nil
}

// Classes returns resolved event classes filtered as Objects.
func (r *Repo) Classes(exts []string) (map[string]compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return newExtensionSet(exts).types(s.Classes), nil
}

// Class returns event class by type name.
func (r *Repo) Class(id string) (compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	if f, ok := s.Class(id); ok {
		return f, nil
	}
	return nil, fmt.Errorf("class %q: %w", id, ErrNotFound)
}

// ClassByUID returns event class by its uid.
func (r *Repo) ClassByUID(uid int64) (compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	if f, ok := s.ClassByUID(uid); ok {
		return f, nil
	}
	return nil, fmt.Errorf("class with uid %d: %w", uid, ErrNotFound)
}

// Object returns object by type name.
func (r *Repo) Object(id string) (compose.Fragment, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	if f, ok := s.Object(id); ok {
		return f, nil
	}
	return nil, fmt.Errorf("object %q: %w", id, ErrNotFound)
}

// Category returns category definition by name.
func (r *Repo) Category(id string) (map[string]any, error) {
	s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	if c, ok := s.Category(id); ok {
		return c, nil
	}
	return nil, fmt.Errorf("category %q: %w", id, ErrNotFound)
}

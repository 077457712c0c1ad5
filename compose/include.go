package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"
)

// pass is a single resolution session over the composer memo table. It
// tracks includes being resolved to detect cycles.
type pass struct {
	c     *Composer
	log   *zap.Logger
	stack []string
	busy  map[string]struct{}
}

func (c *Composer) newPass() *pass {
	return &pass{
		c:    c,
		log:  c.log,
		busy: make(map[string]struct{}),
	}
}

// leaf reads class or object file, resolves its includes and validates its
// type name.
func (p *pass) leaf(scope, name string) (string, Fragment, error) {
	f, err := readFragment(p.c.home, name)
	if err != nil {
		return "", nil, err
	}
	if f, err = p.resolve(scope, name, f); err != nil {
		return "", nil, err
	}
	raw, ok := f[KeyType].(string)
	if !ok {
		return "", nil, newError(MalformedInput, name, fmt.Errorf("%q must be a string", KeyType))
	}
	id, err := ParseIdentifier(raw)
	if err != nil {
		return "", nil, newError(MalformedInput, name, err)
	}
	return id, f, nil
}

// resolve expands trait includes of the fragment attribute set and then
// enum includes of individual attributes. Returned fragment is a new value.
func (p *pass) resolve(scope, name string, f Fragment) (Fragment, error) {
	attrs, ok := f[KeyAttributes]
	if !ok {
		return f, nil
	}
	am, ok := attrs.(map[string]any)
	if !ok {
		return nil, newError(MalformedInput, name, fmt.Errorf("%q must be an object", KeyAttributes))
	}

	if inc, ok := am[KeyInclude]; ok {
		refs, err := includeRefs(inc)
		if err != nil {
			return nil, newError(MalformedInput, name, err)
		}
		// later includes win over earlier ones, own attributes win over all
		base := make(map[string]any)
		for _, ref := range refs {
			included, err := p.include(scope, name, ref)
			if err != nil {
				return nil, err
			}
			base = DeepMerge(base, included.Attributes())
		}
		am = DeepMerge(base, without(am, KeyInclude))
	}

	resolved := make(map[string]any, len(am))
	for an, av := range am {
		attr, ok := av.(map[string]any)
		if !ok {
			resolved[an] = av
			continue
		}
		inc, ok := attr[KeyInclude]
		if !ok {
			resolved[an] = attr
			continue
		}
		refs, err := includeRefs(inc)
		if err != nil {
			return nil, newError(MalformedInput, name, fmt.Errorf("attribute %q: %w", an, err))
		}
		base := make(map[string]any)
		for _, ref := range refs {
			included, err := p.include(scope, name, ref)
			if err != nil {
				return nil, err
			}
			base = DeepMerge(base, included)
		}
		resolved[an] = DeepMerge(base, without(attr, KeyInclude))
	}

	out := make(Fragment, len(f))
	for k, v := range f {
		out[k] = v
	}
	out[KeyAttributes] = resolved
	return out, nil
}

// include returns resolved fragment referenced from "from", consulting memo
// table first. Every distinct file is read and resolved at most once per
// memo table lifetime, its content does not depend on who included it first.
func (p *pass) include(scope, from, ref string) (Fragment, error) {
	key, err := p.locate(scope, ref)
	if err != nil {
		return nil, newError(MalformedInput, from, err)
	}

	if f, ok := p.c.table.Lookup(key); ok {
		return f, nil
	}

	if _, ok := p.busy[key]; ok {
		chain := append(append([]string(nil), p.stack...), key)
		return nil, &Error{Kind: IncludeCycle, Path: from, Chain: chain, Err: fmt.Errorf("%s is already being resolved", key)}
	}
	p.busy[key] = struct{}{}
	p.stack = append(p.stack, key)
	defer func() {
		delete(p.busy, key)
		p.stack = p.stack[:len(p.stack)-1]
	}()

	f, err := readFragment(p.c.home, key)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && errors.Is(err, fs.ErrNotExist) {
			ce.Err = fmt.Errorf("included from %s: %w", from, ce.Err)
		}
		return nil, err
	}
	if f, err = p.resolve(nestedScope(scope, key), key, f); err != nil {
		return nil, err
	}
	p.log.Debug("Include resolved", zap.String("file", key), zap.String("from", from))
	return p.c.table.Store(key, f), nil
}

// locate turns include reference into home relative file name. Inside an
// extension a file relative to extension directory is preferred.
func (p *pass) locate(scope, ref string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(ref, "/"))
	if !fs.ValidPath(clean) || clean == "." {
		return "", fmt.Errorf("invalid include path %q", ref)
	}
	if len(scope) > 0 {
		if local := path.Join(scope, clean); isRegular(p.c.home, local) {
			return local, nil
		}
	}
	return clean, nil
}

// nestedScope is the scope for includes of an included file. Only files
// inside the extension directory see extension local files, anything read
// from home resolves against home, so memo key alone defines the result.
func nestedScope(scope, key string) string {
	if len(scope) > 0 && strings.HasPrefix(key, scope+"/") {
		return scope
	}
	return ""
}

// includeRefs accepts either a single path or a list of paths.
func includeRefs(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		refs := make([]string, 0, len(t))
		for i, r := range t {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", KeyInclude, i, r)
			}
			refs = append(refs, s)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("%s must be a string or a list of strings, got %T", KeyInclude, v)
	}
}

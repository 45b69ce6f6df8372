package qualname

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/DeusData/qualname/internal/lang"
)

// Target describes a runtime object as the host's introspection sees it.
type Target struct {
	Kind Kind
	// Name is the object's own __name__, its best-effort identity.
	Name string
	// Native is the runtime's own qualified name when it exposes one.
	Native string
	// File is the defining source file as reported by the runtime.
	File string
	// Line is the class's source line or the function's first code line.
	Line int
	// Func is the function a bound or unbound method wraps, if known.
	Func *Target
}

// Origin says where a Result's name came from.
type Origin int

const (
	OriginUnresolved Origin = iota
	OriginNative
	OriginSource
)

func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginSource:
		return "source"
	default:
		return "unresolved"
	}
}

// Reason explains an unresolved Result.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoSource        Reason = "no source file"
	ReasonUnsupportedKind Reason = "not a class, function or method"
	ReasonNoLine          Reason = "no definition line"
	// ReasonDecoratorExhausted covers a miss at the reported line and at
	// every decorator line after it.
	ReasonDecoratorExhausted Reason = "no definition at line"
)

// Result is the outcome of a resolution that did not hit an I/O or parse
// failure.
type Result struct {
	Name   string
	Origin Origin
	Reason Reason
	// Fallback is the target's own identity, set when unresolved.
	Fallback string
	Path     string
	Line     int
}

// Resolved reports whether Name holds a qualified name.
func (r Result) Resolved() bool {
	return r.Origin != OriginUnresolved
}

// ErrUnresolvable is matched by every *UnresolvableError.
var ErrUnresolvable = errors.New("qualified name not derivable")

// UnresolvableError is returned by Qualname for unresolved results.
type UnresolvableError struct {
	Reason Reason
	Name   string
	Path   string
	Line   int
}

func (e *UnresolvableError) Error() string {
	subject := e.Name
	if subject == "" {
		subject = "object"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s:%d): %s", ErrUnresolvable, subject, e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrUnresolvable, subject, e.Reason)
}

// Is lets errors.Is(err, ErrUnresolvable) match.
func (e *UnresolvableError) Is(target error) bool {
	return target == ErrUnresolvable
}

// Resolver turns Targets into qualified names using a Cache.
type Resolver struct {
	cache        *Cache
	canonicalize func(string) (string, error)

	derivedMu sync.Mutex
	derived   map[Options]*Resolver
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares c instead of giving the resolver a private cache.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithCanonicalizer replaces the path normalisation used for cache keys.
func WithCanonicalizer(fn func(string) (string, error)) Option {
	return func(r *Resolver) { r.canonicalize = fn }
}

// Default is the process-wide resolver backed by DefaultCache.
var Default = NewResolver(WithCache(DefaultCache))

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{canonicalize: CanonicalPath}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(Options{})
	}
	return r
}

// ForOptions returns a resolver whose cache builds with opts. It is r itself
// when r's cache already does; otherwise a resolver with its own cache and
// r's canonicalizer, created once per distinct opts and reused after.
func (r *Resolver) ForOptions(opts Options) *Resolver {
	opts = opts.Normalized()
	if r.cache.Options() == opts {
		return r
	}
	r.derivedMu.Lock()
	defer r.derivedMu.Unlock()
	if d, ok := r.derived[opts]; ok {
		return d
	}
	if r.derived == nil {
		r.derived = make(map[Options]*Resolver)
	}
	d := NewResolver(WithCache(NewCache(opts)), WithCanonicalizer(r.canonicalize))
	r.derived[opts] = d
	return d
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// CanonicalPath makes p absolute and clean, with forward slashes turned into
// the platform separator, so spellings of one file share a cache key.
func CanonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", fmt.Errorf("canonical path %q: %w", p, err)
	}
	return abs, nil
}

// Resolve derives t's qualified name. The returned error is non-nil only for
// failures reading or parsing the source file; a name that cannot be
// derived is reported through Result.Reason.
func (r *Resolver) Resolve(ctx context.Context, t Target) (Result, error) {
	if t.Native != "" {
		return Result{Name: t.Native, Origin: OriginNative}, nil
	}
	if t.File == "" {
		return unresolved(t, ReasonNoSource, "", 0), nil
	}

	var line int
	switch t.Kind {
	case KindClass, KindFunction:
		line = t.Line
	case KindMethod:
		line = t.Line
		if t.Func != nil {
			line = t.Func.Line
		}
	default:
		return unresolved(t, ReasonUnsupportedKind, "", 0), nil
	}
	if line <= 0 {
		return unresolved(t, ReasonNoLine, "", 0), nil
	}

	path, err := r.canonicalize(t.File)
	if err != nil {
		return Result{}, err
	}

	entry, err := r.cache.Get(ctx, path)
	if err != nil {
		return Result{}, err
	}

	qn, at, ok := entry.lookup(line, r.cache.decoratorMarker(), r.cache.opts.MaxDecoratorLines)
	if !ok {
		slog.Debug("qualname.unresolved", "path", path, "line", line, "name", t.Name)
		return unresolved(t, ReasonDecoratorExhausted, path, line), nil
	}
	return Result{Name: qn, Origin: OriginSource, Path: path, Line: at}, nil
}

// Qualname returns t's qualified name, or an *UnresolvableError when none can
// be derived.
func (r *Resolver) Qualname(ctx context.Context, t Target) (string, error) {
	res, err := r.Resolve(ctx, t)
	if err != nil {
		return "", err
	}
	if !res.Resolved() {
		return "", &UnresolvableError{Reason: res.Reason, Name: res.Fallback, Path: res.Path, Line: res.Line}
	}
	return res.Name, nil
}

// Definitions returns every definition in file, building its entry if needed.
func (r *Resolver) Definitions(ctx context.Context, file string) ([]Definition, *Entry, error) {
	path, err := r.canonicalize(file)
	if err != nil {
		return nil, nil, err
	}
	entry, err := r.cache.Get(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return entry.Mapping.Definitions(), entry, nil
}

// Peek returns file's cached entry without building it.
func (r *Resolver) Peek(file string) (*Entry, bool) {
	path, err := r.canonicalize(file)
	if err != nil {
		return nil, false
	}
	return r.cache.Peek(path)
}

// Forget drops file's cached entry so the next lookup re-reads the file.
func (r *Resolver) Forget(file string) {
	if path, err := r.canonicalize(file); err == nil {
		r.cache.Forget(path)
	}
}

// Qualname resolves t with Default.
func Qualname(ctx context.Context, t Target) (string, error) {
	return Default.Qualname(ctx, t)
}

func unresolved(t Target, reason Reason, path string, line int) Result {
	return Result{Origin: OriginUnresolved, Reason: reason, Fallback: t.Name, Path: path, Line: line}
}

// lookup tries line, then each following line while the current one is a
// decorator line. It returns the line that matched.
func (e *Entry) lookup(line int, marker string, maxSkip int) (string, int, bool) {
	for skipped := 0; ; skipped++ {
		if qn, ok := e.Mapping.Lookup(line); ok {
			return qn, line, true
		}
		if !e.Lines.IsDecorator(line, marker) {
			return "", line, false
		}
		if line >= e.Lines.Len() {
			return "", line, false
		}
		if maxSkip > 0 && skipped >= maxSkip {
			return "", line, false
		}
		line++
	}
}

func (c *Cache) decoratorMarker() string {
	l := c.opts.Language
	if l == "" {
		l = lang.Python
	}
	if spec := lang.ForLanguage(l); spec != nil {
		return spec.DecoratorMarker
	}
	return "@"
}

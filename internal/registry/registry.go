package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/platform"
)

var (
	// ErrUnsupportedPlatform is returned when the table has no entry for a platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrUnknownSource is returned by UpdateHash for a source not owned by the registry.
	ErrUnknownSource = errors.New("source does not belong to this registry")
	// ErrDynamicRegistry is returned when a scripted registry cannot be rewritten
	// without losing its platform conditionals.
	ErrDynamicRegistry = errors.New("registry script depends on the platform table and cannot be rewritten")
)

// Registry is the in-memory view of a registry file.
type Registry struct {
	path     string
	codec    codec
	table    Table
	dynamic  bool
	platform *platform.Info
	log      logging.Logger
}

// Option configures Load.
type Option func(*Registry)

// WithLogger sets the logger used for load and save events.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithPlatform sets the platform exposed to Lua registries.
func WithPlatform(info *platform.Info) Option {
	return func(r *Registry) {
		r.platform = info
	}
}

// Load reads and validates the registry file at path.
func Load(path string, opts ...Option) (*Registry, error) {
	r := &Registry{path: path}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.OrNop(r.log)

	c, err := codecFor(path, r.platform)
	if err != nil {
		return nil, err
	}
	r.codec = c

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	table, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	table.normalize()

	if err := table.Validate(); err != nil {
		return nil, &ParseError{Message: "invalid registry " + filepath.Base(path), Detail: err.Error()}
	}

	r.table = table
	if lc, ok := c.(*luaCodec); ok {
		r.dynamic = lc.dynamic
	}

	r.log.Debug("registry loaded", "path", path, "platforms", len(table), "dynamic", r.dynamic)
	return r, nil
}

// New wraps an in-memory table that will be written to path on change.
func New(path string, table Table, opts ...Option) (*Registry, error) {
	r := &Registry{path: path}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.OrNop(r.log)

	c, err := codecFor(path, r.platform)
	if err != nil {
		return nil, err
	}
	r.codec = c

	table.normalize()
	if err := table.Validate(); err != nil {
		return nil, err
	}
	r.table = table
	return r, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// Platforms returns the platform keys in sorted order.
func (r *Registry) Platforms() []string {
	keys := make([]string, 0, len(r.table))
	for k := range r.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sources returns the ordered sources for platform. Lookup is exact first,
// then case-insensitive.
func (r *Registry) Sources(platformKey string) ([]*Source, error) {
	if sources, ok := r.table[platformKey]; ok {
		return sources, nil
	}
	for key, sources := range r.table {
		if strings.EqualFold(key, platformKey) {
			return sources, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platformKey)
}

// Resolve returns the sources for the first of keys present in the table,
// along with the key that matched.
func (r *Registry) Resolve(keys ...string) (string, []*Source, error) {
	for _, key := range keys {
		if sources, err := r.Sources(key); err == nil {
			return key, sources, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s (registry has %s)", ErrUnsupportedPlatform,
		strings.Join(keys, ", "), strings.Join(r.Platforms(), ", "))
}

// UpdateHash records hash as the expected digest of src and rewrites the
// registry file. On failure the previous in-memory value is restored.
func (r *Registry) UpdateHash(src *Source, hash string) error {
	if !r.owns(src) {
		return fmt.Errorf("%w: %s", ErrUnknownSource, src.URL)
	}

	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return fmt.Errorf("refusing to record an empty hash for %s", src.URL)
	}

	if r.dynamic {
		return fmt.Errorf("%w: record sha256 %q for %s in %s by hand", ErrDynamicRegistry, hash, src.URL, r.path)
	}

	previous := src.SHA256
	src.SHA256 = hash
	if err := r.Save(); err != nil {
		src.SHA256 = previous
		return err
	}

	r.log.Info("registry hash updated", "url", src.URL, "sha256", hash, "path", r.path)
	return nil
}

// Save writes the whole table to the registry path by atomic replace.
func (r *Registry) Save() error {
	if r.dynamic {
		return ErrDynamicRegistry
	}

	data, err := r.codec.encode(r.table)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if err := writeAtomic(r.path, data); err != nil {
		return fmt.Errorf("save registry %s: %w", r.path, err)
	}
	return nil
}

func (r *Registry) owns(src *Source) bool {
	if src == nil {
		return false
	}
	for _, sources := range r.table {
		for _, candidate := range sources {
			if candidate == src {
				return true
			}
		}
	}
	return false
}

// ParseError represents a registry parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

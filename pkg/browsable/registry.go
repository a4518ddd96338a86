package browsable

import (
	"io"
	"sort"
	"sync"

	"github.com/marmos91/dittobrowse/internal/logger"
)

// WildcardKind is the discriminator of kind factories tried after every
// exact match has declined.
const WildcardKind = "*"

// AnyCapability is the tag of capability factories tried after the
// tag-specific ones.
const AnyCapability = ""

// Locator describes a resource to be opened by a kind factory.
type Locator struct {
	// Name is the display name of the resource (e.g. "events.zip")
	Name string

	// Path is the full path of the resource inside its backend
	Path string

	// Size is the content size in bytes, or -1 if unknown
	Size int64

	// Open returns a reader over the resource content. Readers that also
	// implement io.ReaderAt let archive providers avoid buffering.
	Open func() (io.ReadCloser, error)
}

// KindFactory opens a resource of a given kind. It returns nil when it
// cannot handle the resource; it never fails hard.
type KindFactory func(loc Locator) Element

// CapabilityFactory specializes a placeholder into a richer Element. It may
// consume the holder (Holder.Take) to stop the lookup even when it returns nil.
type CapabilityFactory func(h *Holder) Element

// Holder carries a generically-typed child to be specialized through the
// capability table.
type Holder struct {
	// Tag is the structural capability of the value (e.g. a record class)
	Tag string

	value    any
	consumed bool
}

// NewHolder wraps value under the given capability tag.
func NewHolder(tag string, value any) *Holder {
	return &Holder{Tag: tag, value: value}
}

// Value returns the wrapped value without consuming it (nil once consumed).
func (h *Holder) Value() any {
	return h.value
}

// Take consumes the holder and returns its value.
func (h *Holder) Take() any {
	v := h.value
	h.value = nil
	h.consumed = true
	return v
}

// Consumed reports whether a factory took the value.
func (h *Holder) Consumed() bool {
	return h.consumed
}

type kindEntry struct {
	owner   *Provider
	factory KindFactory
}

type capabilityEntry struct {
	owner   *Provider
	factory CapabilityFactory
}

// Registry maps resource kinds and capability tags to factories.
//
// It replaces process-wide tables: whoever composes the browsing service
// creates one and hands it to the backends. Registrations are owned by a
// Provider and retracted together when the provider is closed.
//
// Thread safety:
// All methods are safe for concurrent use. Factories are invoked outside the
// lock so they may call back into the registry.
type Registry struct {
	mu           sync.RWMutex
	kinds        map[string][]kindEntry
	capabilities map[string][]capabilityEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:        make(map[string][]kindEntry),
		capabilities: make(map[string][]capabilityEntry),
	}
}

// Provider is the owner identity of a set of registrations.
type Provider struct {
	name string
	reg  *Registry
}

// NewProvider creates an owner whose registrations can be retracted in bulk.
func (r *Registry) NewProvider(name string) *Provider {
	return &Provider{name: name, reg: r}
}

// Name returns the provider name used in log messages.
func (p *Provider) Name() string {
	return p.name
}

// RegisterKind registers a factory for a resource kind (e.g. a file
// extension). A second factory for the same non-wildcard kind is logged as
// a warning and kept: factories are tried in registration order.
func (p *Provider) RegisterKind(kind string, factory KindFactory) {
	if factory == nil {
		return
	}

	r := p.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind != WildcardKind && len(r.kinds[kind]) > 0 {
		logger.Warn("Provider for kind %q already exists, adding %s as fallback", kind, p.name)
	}

	r.kinds[kind] = append(r.kinds[kind], kindEntry{owner: p, factory: factory})
}

// RegisterCapability registers a factory for a capability tag. The tag
// AnyCapability registers a fallback tried for every holder.
func (p *Provider) RegisterCapability(tag string, factory CapabilityFactory) {
	if factory == nil {
		return
	}

	r := p.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag != AnyCapability && len(r.capabilities[tag]) > 0 {
		logger.Warn("Provider for capability %q already exists, adding %s as fallback", tag, p.name)
	}

	r.capabilities[tag] = append(r.capabilities[tag], capabilityEntry{owner: p, factory: factory})
}

// Close retracts every registration made by the provider.
func (p *Provider) Close() {
	p.reg.Unregister(p)
}

// Unregister removes every registration owned by p from both tables.
func (r *Registry) Unregister(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, entries := range r.kinds {
		kept := entries[:0]
		for _, e := range entries {
			if e.owner != p {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.kinds, kind)
		} else {
			r.kinds[kind] = kept
		}
	}

	for tag, entries := range r.capabilities {
		kept := entries[:0]
		for _, e := range entries {
			if e.owner != p {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.capabilities, tag)
		} else {
			r.capabilities[tag] = kept
		}
	}
}

// Open opens a resource by kind: exact-kind factories first, in
// registration order, then wildcard factories. Returns nil if none accepts.
func (r *Registry) Open(kind string, loc Locator) Element {
	r.mu.RLock()
	candidates := make([]kindEntry, 0, len(r.kinds[kind])+len(r.kinds[WildcardKind]))
	if kind != WildcardKind {
		candidates = append(candidates, r.kinds[kind]...)
	}
	candidates = append(candidates, r.kinds[WildcardKind]...)
	r.mu.RUnlock()

	for _, e := range candidates {
		if elem := e.factory(loc); elem != nil {
			return elem
		}
	}

	return nil
}

// Resolve specializes a holder: tag-specific factories first, then
// AnyCapability factories. The lookup stops at the first non-nil Element or
// as soon as a factory consumed the holder.
func (r *Registry) Resolve(h *Holder) Element {
	if h == nil || h.Consumed() {
		return nil
	}

	r.mu.RLock()
	candidates := make([]capabilityEntry, 0, len(r.capabilities[h.Tag])+len(r.capabilities[AnyCapability]))
	if h.Tag != AnyCapability {
		candidates = append(candidates, r.capabilities[h.Tag]...)
	}
	candidates = append(candidates, r.capabilities[AnyCapability]...)
	r.mu.RUnlock()

	for _, e := range candidates {
		elem := e.factory(h)
		if elem != nil || h.Consumed() {
			return elem
		}
	}

	return nil
}

// HasKind reports whether an exact (non-wildcard) factory exists for kind.
func (r *Registry) HasKind(kind string) bool {
	if kind == "" || kind == WildcardKind {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds[kind]) > 0
}

// HasCapability reports whether a tag-specific factory exists for tag.
func (r *Registry) HasCapability(tag string) bool {
	if tag == AnyCapability {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities[tag]) > 0
}

// Kinds returns the registered kind discriminators, sorted.
// The returned slice is a copy and safe to modify.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// CountKindFactories returns the number of factories registered for kind.
func (r *Registry) CountKindFactories(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds[kind])
}

// CountCapabilityFactories returns the number of factories registered for tag.
func (r *Registry) CountCapabilityFactories(tag string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities[tag])
}

package rt

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Protocols: named required/optional method-signature sets
// ---------------------------------------------------------------------------
//
// Conformance is dual-mode on purpose. Declaring conformance performs no
// check, so classes whose methods arrive later (categories, swizzles) can
// adopt a protocol up front. Validation is a separate, explicit step for
// callers that want the safety.

// Protocol is a named set of required and optional selector/signature
// pairs, optionally inheriting from a parent protocol.
type Protocol struct {
	name   string
	parent *Protocol

	mu       sync.RWMutex
	required map[*Selector]string // selector -> type encoding
	optional map[*Selector]string
}

// NewProtocol creates a protocol, optionally inheriting requirements from a
// parent.
func NewProtocol(name string, parent *Protocol) *Protocol {
	return &Protocol{
		name:     arenaString(name),
		parent:   parent,
		required: make(map[*Selector]string),
		optional: make(map[*Selector]string),
	}
}

// Name returns the protocol name.
func (p *Protocol) Name() string { return p.name }

// Parent returns the parent protocol, or nil.
func (p *Protocol) Parent() *Protocol { return p.parent }

// AddRequired declares a required selector with its type encoding.
func (p *Protocol) AddRequired(sel *Selector, encoding string) error {
	return p.add(p.required, sel, encoding)
}

// AddOptional declares an optional selector with its type encoding.
func (p *Protocol) AddOptional(sel *Selector, encoding string) error {
	return p.add(p.optional, sel, encoding)
}

func (p *Protocol) add(set map[*Selector]string, sel *Selector, encoding string) error {
	if err := ValidateEncoding(encoding); err != nil {
		return fmt.Errorf("protocol %s: %w", p.name, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := set[sel]; dup {
		return fmt.Errorf("%w: %s in %s", ErrProtocolMethodExists, sel.Name(), p.name)
	}
	set[sel] = encoding
	return nil
}

// Required returns the protocol's own required selectors.
func (p *Protocol) Required() []*Selector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Selector, 0, len(p.required))
	for sel := range p.required {
		out = append(out, sel)
	}
	return out
}

// Optional returns the protocol's own optional selectors.
func (p *Protocol) Optional() []*Selector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Selector, 0, len(p.optional))
	for sel := range p.optional {
		out = append(out, sel)
	}
	return out
}

// allRequired walks the parent chain and collects every required selector.
func (p *Protocol) allRequired() []*Selector {
	var out []*Selector
	for q := p; q != nil; q = q.parent {
		out = append(out, q.Required()...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Conformance
// ---------------------------------------------------------------------------

// DeclareConformance tags the class as conforming to p. No validation
// happens here; ValidateConformance is the explicit check.
func (c *Class) DeclareConformance(p *Protocol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.protocols {
		if q == p {
			return
		}
	}
	c.protocols = append(c.protocols, p)
}

// Protocols returns the protocols this class itself declares.
func (c *Class) Protocols() []*Protocol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Protocol, len(c.protocols))
	copy(out, c.protocols)
	return out
}

// Conforms reports whether c declares conformance to p, directly or through
// a superclass (conformance is transitive down the hierarchy) or because a
// declared protocol inherits from p.
func (c *Class) Conforms(p *Protocol) bool {
	for k := c; k != nil; k = k.super {
		k.mu.RLock()
		declared := k.protocols
		for _, q := range declared {
			for r := q; r != nil; r = r.parent {
				if r == p {
					k.mu.RUnlock()
					return true
				}
			}
		}
		k.mu.RUnlock()
	}
	return false
}

// ValidateConformance checks that every required selector of p, including
// those inherited from parent protocols, resolves on c: own methods first,
// then categories, then the superclass chain. It fails naming the first
// unsatisfied selector.
func (c *Class) ValidateConformance(p *Protocol) error {
	for _, sel := range p.allRequired() {
		if !c.RespondsTo(sel) {
			return &MissingProtocolMethodError{
				Class:    c.name,
				Protocol: p.name,
				Selector: sel.Name(),
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Protocol registry
// ---------------------------------------------------------------------------

// ProtocolRegistry maps names to registered protocols. Process-wide
// singleton alongside the class and selector registries.
type ProtocolRegistry struct {
	mu        sync.RWMutex
	protocols map[string]*Protocol
}

// NewProtocolRegistry creates an empty registry.
func NewProtocolRegistry() *ProtocolRegistry {
	return &ProtocolRegistry{protocols: make(map[string]*Protocol)}
}

var (
	protocolRegOnce sync.Once
	protocolReg     *ProtocolRegistry
)

// Protocols returns the process-wide protocol registry.
func Protocols() *ProtocolRegistry {
	protocolRegOnce.Do(func() {
		protocolReg = NewProtocolRegistry()
	})
	return protocolReg
}

// Register creates and registers a protocol. Re-registering a name returns
// the existing protocol.
func (r *ProtocolRegistry) Register(name string, parent *Protocol) *Protocol {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.protocols[name]; ok {
		return p
	}
	p := NewProtocol(name, parent)
	r.protocols[name] = p
	return p
}

// Lookup finds a protocol by name, or nil.
func (r *ProtocolRegistry) Lookup(name string) *Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protocols[name]
}

// All returns all registered protocols.
func (r *ProtocolRegistry) All() []*Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		out = append(out, p)
	}
	return out
}

// RegisterProtocol registers a protocol with the process-wide registry.
func RegisterProtocol(name string, parent *Protocol) *Protocol {
	return Protocols().Register(name, parent)
}

// DeclareConformance tags class as conforming to proto.
func DeclareConformance(c *Class, p *Protocol) {
	c.DeclareConformance(p)
}

// ValidateConformance validates class against proto.
func ValidateConformance(c *Class, p *Protocol) error {
	return c.ValidateConformance(p)
}

package rt

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Registry snapshots
// ---------------------------------------------------------------------------
//
// An Image is a serializable picture of the runtime's registered shape:
// selector names, the class hierarchy with method signatures, and
// protocols. Implementations are function pointers and do not serialize;
// Restore rebinds them through a resolver. Encoding is canonical CBOR, so
// equal registries produce byte-identical snapshots.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("rt: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MethodImage is a serialized selector/encoding pair.
type MethodImage struct {
	Selector string `cbor:"selector"`
	Encoding string `cbor:"encoding"`
}

// ClassImage is a serialized class.
type ClassImage struct {
	Name         string        `cbor:"name"`
	Super        string        `cbor:"super,omitempty"`
	InstanceSize uint64        `cbor:"size,omitempty"`
	Methods      []MethodImage `cbor:"methods,omitempty"`
	Protocols    []string      `cbor:"protocols,omitempty"`
}

// ProtocolImage is a serialized protocol.
type ProtocolImage struct {
	Name     string        `cbor:"name"`
	Parent   string        `cbor:"parent,omitempty"`
	Required []MethodImage `cbor:"required,omitempty"`
	Optional []MethodImage `cbor:"optional,omitempty"`
}

// Image is a serialized registry snapshot.
type Image struct {
	Selectors []string        `cbor:"selectors"`
	Classes   []ClassImage    `cbor:"classes"`
	Protocols []ProtocolImage `cbor:"protocols"`
}

// effectiveMethods returns the class's own resolved method set: base table
// overlaid with categories, newest install winning.
func (c *Class) effectiveMethods() []MethodImage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolved := make(map[*Selector]*Method, len(c.methods))
	for sel, m := range c.methods {
		resolved[sel] = m
	}
	for _, cat := range c.categories {
		for sel, m := range cat.methods {
			resolved[sel] = m
		}
	}
	out := make([]MethodImage, 0, len(resolved))
	for sel, m := range resolved {
		out = append(out, MethodImage{Selector: sel.Name(), Encoding: m.encoding})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Selector < out[j].Selector })
	return out
}

func methodImages(set map[*Selector]string) []MethodImage {
	out := make([]MethodImage, 0, len(set))
	for sel, enc := range set {
		out = append(out, MethodImage{Selector: sel.Name(), Encoding: enc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Selector < out[j].Selector })
	return out
}

// CaptureImage snapshots the process-wide registries.
func CaptureImage() *Image {
	img := &Image{}

	img.Selectors = Selectors().All()
	sort.Strings(img.Selectors)

	for _, c := range Classes().All() {
		ci := ClassImage{
			Name:         c.name,
			InstanceSize: uint64(c.instanceSize),
			Methods:      c.effectiveMethods(),
		}
		if c.super != nil {
			ci.Super = c.super.name
		}
		for _, p := range c.Protocols() {
			ci.Protocols = append(ci.Protocols, p.name)
		}
		sort.Strings(ci.Protocols)
		img.Classes = append(img.Classes, ci)
	}
	sort.Slice(img.Classes, func(i, j int) bool { return img.Classes[i].Name < img.Classes[j].Name })

	for _, p := range Protocols().All() {
		pi := ProtocolImage{Name: p.name}
		if p.parent != nil {
			pi.Parent = p.parent.name
		}
		p.mu.RLock()
		pi.Required = methodImages(p.required)
		pi.Optional = methodImages(p.optional)
		p.mu.RUnlock()
		img.Protocols = append(img.Protocols, pi)
	}
	sort.Slice(img.Protocols, func(i, j int) bool { return img.Protocols[i].Name < img.Protocols[j].Name })

	return img
}

// Marshal serializes the image as canonical CBOR.
func (img *Image) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("rt: unmarshal image: %w", err)
	}
	return &img, nil
}

// ImpResolver rebinds a serialized method to an implementation. Returning
// nil skips the method.
type ImpResolver func(class, selector, encoding string) Imp

// Restore replays the snapshot into the process-wide registries: selectors
// are interned, protocols and classes registered parents-first, and methods
// rebound through resolve. Classes and protocols already registered are
// left alone.
func (img *Image) Restore(resolve ImpResolver) error {
	for _, name := range img.Selectors {
		Intern(name)
	}

	// Protocols parents-first; parent links may arrive in any order.
	pending := append([]ProtocolImage(nil), img.Protocols...)
	for len(pending) > 0 {
		progress := false
		rest := pending[:0]
		for _, pi := range pending {
			if Protocols().Lookup(pi.Name) != nil {
				progress = true
				continue
			}
			var parent *Protocol
			if pi.Parent != "" {
				if parent = Protocols().Lookup(pi.Parent); parent == nil {
					rest = append(rest, pi)
					continue
				}
			}
			p := RegisterProtocol(pi.Name, parent)
			for _, mi := range pi.Required {
				if err := p.AddRequired(Intern(mi.Selector), mi.Encoding); err != nil {
					return fmt.Errorf("rt: restore protocol %s: %w", pi.Name, err)
				}
			}
			for _, mi := range pi.Optional {
				if err := p.AddOptional(Intern(mi.Selector), mi.Encoding); err != nil {
					return fmt.Errorf("rt: restore protocol %s: %w", pi.Name, err)
				}
			}
			progress = true
		}
		if !progress {
			return fmt.Errorf("rt: restore: unresolvable protocol parents (%d left)", len(pending))
		}
		pending = rest
	}

	// Classes parents-first, same fixpoint walk.
	remaining := append([]ClassImage(nil), img.Classes...)
	for len(remaining) > 0 {
		progress := false
		rest := remaining[:0]
		for _, ci := range remaining {
			var super *Class
			if ci.Super != "" {
				if super = LookupClass(ci.Super); super == nil {
					rest = append(rest, ci)
					continue
				}
			}
			c := LookupClass(ci.Name)
			if c == nil {
				var err error
				c, err = RegisterClassWithSize(ci.Name, super, uintptr(ci.InstanceSize))
				if err != nil {
					return fmt.Errorf("rt: restore class %s: %w", ci.Name, err)
				}
				for _, mi := range ci.Methods {
					imp := resolve(ci.Name, mi.Selector, mi.Encoding)
					if imp == nil {
						continue
					}
					if _, err := c.AddMethod(Intern(mi.Selector), imp, mi.Encoding); err != nil {
						return fmt.Errorf("rt: restore class %s: %w", ci.Name, err)
					}
				}
				for _, pname := range ci.Protocols {
					if p := Protocols().Lookup(pname); p != nil {
						c.DeclareConformance(p)
					}
				}
			}
			progress = true
		}
		if !progress {
			return fmt.Errorf("rt: restore: unresolvable superclasses (%d left)", len(remaining))
		}
		remaining = rest
	}
	return nil
}

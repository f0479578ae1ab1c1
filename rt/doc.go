// Package rt implements a dynamic-object runtime with Objective-C style
// message passing: interned selectors, single-inheritance classes with
// method tables and per-class caches, atomic reference counting,
// region-based memory, and a four-stage forwarding pipeline for
// unresolved sends.
//
// The package is a library consumed in-process by a language toolchain.
// The toolchain registers classes, methods and protocols through
// RegisterClass, Class.AddMethod, Intern and DeclareConformance, and
// delivers messages through Send. There is no network protocol and no
// CLI; the only serialized form is the CBOR registry snapshot in
// CaptureImage and Image.Restore.
//
// The selector, class and protocol registries and the global arena are
// process-wide singletons: they are initialized on first use and are never
// torn down during normal operation.
package rt

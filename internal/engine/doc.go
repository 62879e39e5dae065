// Package engine answers semantic questions about one endpoint URI: what
// is documented under the cursor, what may be typed there, and what is
// wrong with the URI as written.
//
// # Architecture
//
// Every operation starts from an instance.Tree and dispatches on the kind
// of the resolved instance through per-kind lookup tables:
//
//   - Hover renders documentation for the bound definition.
//   - Complete enumerates candidates together with the span they replace.
//   - Diagnose walks the whole tree and reports problems as data.
//
// # Thread Safety
//
// The functions in this package are pure. They read the tree and the
// catalog and never mutate either, so they are safe to call from any
// number of goroutines.
//
// # Basic Usage
//
//	tree := instance.Parse("kafka:orders?brokers=", 0, lookup)
//	info := engine.Hover(tree, tree.Resolve(7))
//	items := engine.Complete(tree, 13, lookup)
//	problems := engine.Diagnose(tree)
//
// An Engine value bundles the same operations with options such as a
// result limit:
//
//	e := engine.New(engine.WithMaxResults(50))
//	items := e.Complete(tree, 13, lookup)
package engine

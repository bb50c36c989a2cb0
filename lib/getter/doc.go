// Package getter defines the dependency expressions evaluated against
// reactor state: KeyPaths and Getters.
//
// A KeyPath is a navigation descriptor into the nested state tree. A Getter
// combines a list of dependencies (KeyPaths or other Getters) with a pure
// compute function. Both implement the sealed Dependency interface, so
// "KeyPath or Getter" is decided by the type at construction time.
//
// Getters are used as cache keys by the evaluator and the change observer.
// Because Go functions cannot be compared, every call to New assigns a
// unique id that stands in for the function's identity. Getters created by
// FromKeyPath share a reserved id and are equal whenever their paths are.
//
// Example usage:
//
//	count := getter.NewKeyPath("counter", "count")
//	doubled := getter.New(func(args ...any) (any, error) {
//		return args[0].(int) * 2, nil
//	}, count)
package getter

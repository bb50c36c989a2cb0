// Package docstore provides a data-driven reactor store.
//
// A docstore holds a document (usually an immutable.Map) and is changed by
// five action types, each addressed to one store id and a key path inside
// its document:
//
//   - doc/set:       store the value at path (the whole document for an empty path)
//   - doc/delete:    remove the value at path (reset the document for an empty path)
//   - doc/merge:     shallow-merge a map into the map at path
//   - doc/increment: add a number (default 1) to the number at path
//   - doc/push:      append the value to the vector at path
//
// Values are converted with immutable.FromNative, so payloads decoded from
// JSON or YAML can be dispatched as they are.
//
// Example usage:
//
//	r := reactor.New(nil)
//	_ = r.RegisterStore("todos", docstore.New("todos", map[string]any{"items": []any{}}))
//	_ = r.Dispatch(docstore.ActionPush, docstore.Payload{Store: "todos", Path: []any{"items"}, Value: "write tests"})
package docstore

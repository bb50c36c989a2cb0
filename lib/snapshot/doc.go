// Package snapshot persists the serialized state of a reactor.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - A small framed file format that records which format was used
//
// Key Components:
//
//   - ISerializer: Core interface that all serializer implementations must
//     satisfy. It converts the output of Reactor.Serialize (store id ->
//     plain Go value) to bytes and back.
//
//   - jsonSerializerImpl: JSON encoding. Numbers are decoded as json.Number
//     so integers survive the round trip; Reactor.LoadState converts them.
//
//   - gobSerializerImpl: Go's gob encoding. The plain collection types
//     (map[string]any, []any) are registered at init.
//
//   - yamlSerializerImpl: YAML encoding (gopkg.in/yaml.v3), human-editable.
//
// File format (all integers little endian):
//
//  1. Magic number "DFLUXSS\x00" to identify the file format
//  2. Version (uint8)
//  3. Serializer id (uint8)
//  4. Payload length (uint32)
//  5. Payload bytes
//
// Usage:
//
//	data, _ := r.Serialize()
//	err := snapshot.Save(f, snapshot.NewJSONSerializer(), data)
//	// ...
//	data, header, err := snapshot.Load(f)
//	err = r.LoadState(data)
package snapshot

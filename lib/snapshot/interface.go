package snapshot

import (
	"fmt"
	"sort"
)

// ISerializer converts serialized reactor state to bytes and back
type ISerializer interface {
	// ID identifies the format inside snapshot files
	ID() uint8
	// Name is the name used on the command line ("json", "gob", "yaml")
	Name() string
	// Serialize encodes the state
	Serialize(data map[string]any) ([]byte, error)
	// Deserialize decodes bytes produced by Serialize
	Deserialize(b []byte) (map[string]any, error)
}

// Serializer ids written to snapshot files
const (
	IDJSON uint8 = iota + 1
	IDGOB
	IDYAML
)

var serializers = map[string]func() ISerializer{
	"json": NewJSONSerializer,
	"gob":  NewGOBSerializer,
	"yaml": NewYAMLSerializer,
}

// Names returns the names of all serializers
func Names() []string {
	names := make([]string, 0, len(serializers))
	for name := range serializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName returns the serializer with the given name
func ByName(name string) (ISerializer, error) {
	factory, ok := serializers[name]
	if !ok {
		return nil, fmt.Errorf("unknown serializer %q (available: %v)", name, Names())
	}
	return factory(), nil
}

// ByID returns the serializer with the given id
func ByID(id uint8) (ISerializer, error) {
	for _, factory := range serializers {
		if s := factory(); s.ID() == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown serializer id %d", id)
}

package snapshot

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() ISerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the ISerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see snapshot.ISerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) ID() uint8 { return IDGOB }

func (g gobSerializerImpl) Name() string { return "gob" }

func (g gobSerializerImpl) Serialize(data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte) (map[string]any, error) {
	var data map[string]any
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

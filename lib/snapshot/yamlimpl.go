package snapshot

import (
	"gopkg.in/yaml.v3"
)

// NewYAMLSerializer creates a new serializer using yaml encoding
func NewYAMLSerializer() ISerializer {
	return &yamlSerializerImpl{}
}

// yamlSerializerImpl implements the ISerializer interface using yaml encoding
type yamlSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see snapshot.ISerializer)
// --------------------------------------------------------------------------

func (y yamlSerializerImpl) ID() uint8 { return IDYAML }

func (y yamlSerializerImpl) Name() string { return "yaml" }

func (y yamlSerializerImpl) Serialize(data map[string]any) ([]byte, error) {
	return yaml.Marshal(data)
}

func (y yamlSerializerImpl) Deserialize(b []byte) (map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

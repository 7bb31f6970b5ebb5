package enrichment

import (
	"encoding/json"
	"fmt"
)

// jsonCodec marshals gRPC frames as plain JSON. The device profile service
// speaks JSON over gRPC, so generated protobuf types are not needed.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode json frame: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return "json"
}

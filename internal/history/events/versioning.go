package events

import (
	"encoding/json"
	"fmt"

	"github.com/linkflow/engine/internal/history/types"
)

// CurrentSchemaVersion is the current event schema version.
const CurrentSchemaVersion = 1

// VersionedEvent wraps a serialized event with schema version metadata.
type VersionedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// SerializeVersioned serializes a history event with schema version metadata.
func (s *Serializer) SerializeVersioned(event *types.HistoryEvent) ([]byte, error) {
	data, err := s.Serialize(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}

	versioned := VersionedEvent{
		SchemaVersion: CurrentSchemaVersion,
		Data:          json.RawMessage(data),
	}

	return json.Marshal(versioned)
}

// DeserializeVersioned reads a versioned event, migrating older schemas
// forward to the current shape before handing off to Deserialize. Events
// written before SchemaVersion existed carry no envelope at all, so an
// unmarshal failure or a zero version both fall back to the legacy path.
func (s *Serializer) DeserializeVersioned(data []byte) (*types.HistoryEvent, error) {
	var versioned VersionedEvent
	if err := json.Unmarshal(data, &versioned); err != nil || versioned.SchemaVersion == 0 {
		return s.Deserialize(data)
	}

	if versioned.SchemaVersion != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported event schema version: %d", versioned.SchemaVersion)
	}
	return s.Deserialize([]byte(versioned.Data))
}

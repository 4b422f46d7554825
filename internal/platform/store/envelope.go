package store

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// SchemaVersion is written into every persisted collection.
const SchemaVersion = 1

type envelope struct {
	Schema int             `json:"schema"`
	Data   json.RawMessage `json:"data"`
}

func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Schema: SchemaVersion, Data: data})
}

func Decode(payload []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Schema != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrSchema, env.Schema)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrCorrupt)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

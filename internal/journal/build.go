package journal

import (
	"fmt"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// New selects the journal backend. client is only used by the dynamodb
// backend and may be nil otherwise.
func New(cfg types.JournalConfig, instance string, client DDBAPI) (Journal, error) {
	switch cfg.Type {
	case types.JournalNone:
		return Noop{}, nil
	case "", types.JournalMemory:
		return NewMemory(cfg.Capacity), nil
	case types.JournalDynamoDB:
		if client == nil {
			return nil, fmt.Errorf("dynamodb journal requires a client")
		}
		return NewDynamoDB(client, cfg.TableName, instance, cfg.TTLDays)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
}

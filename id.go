package revenue

import "github.com/splitpot/revenue/id"

// ID is the primary identifier type for all revenue entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

package snowflake

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// sequenceCeiling is the value at which the per-millisecond sequence
// overflows. Hitting it borrows a future millisecond, so 2047 itself is
// never embedded in an identifier.
const sequenceCeiling = sequenceMask

// Generator mints identifiers for one entity kind. The surrounding service
// holds one generator per kind (users, guilds, channels, messages, guild
// memberships) so a burst on one kind does not consume another's sequence
// budget.
//
// Generate is safe for concurrent use; the internal mutex is held for the
// full call and the call never blocks on I/O.
type Generator struct {
	mu sync.Mutex

	machineID uint16
	now       func() int64

	lastTimestamp int64
	sequence      uint16

	// overflowDebt counts virtual future milliseconds currently borrowed.
	// When the sequence overflows within one millisecond the generator
	// moves on to the next (not yet real) millisecond instead of blocking,
	// and pays the debt back as wall time advances.
	overflowDebt int64
}

// NewGenerator creates a generator for the given machine id.
// Machine ids must be assigned so that no two live processes share one;
// there is no coordination protocol, operators are responsible.
func NewGenerator(machineID int) (*Generator, error) {
	if machineID < 0 || machineID >= MaxMachineID {
		return nil, fmt.Errorf("machine id %d out of range [0, %d)", machineID, MaxMachineID)
	}
	return &Generator{
		machineID: uint16(machineID),
		now:       nowMillis,
	}, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli() - Epoch
}

// Generate mints the next identifier.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if now != g.lastTimestamp {
		g.lastTimestamp = now
		if g.overflowDebt > 0 {
			// Wall time caught up with one borrowed millisecond. The
			// sequence keeps counting: the current real millisecond was
			// already partially used while it was virtual.
			g.overflowDebt--
		} else {
			g.sequence = 0
		}
	}

	timestamp := now + g.overflowDebt

	g.sequence++
	if g.sequence >= sequenceCeiling {
		log.Printf("WARNING: snowflake sequence overflow: timestamp=%d machine=%d debt=%d",
			timestamp, g.machineID, g.overflowDebt)
		g.overflowDebt++
		g.sequence = 0
		timestamp = now + g.overflowDebt
	}

	return Pack(timestamp, g.machineID, g.sequence)
}

// Package snowflake generates and manipulates Concord's 63-bit entity
// identifiers.
//
// Each identifier packs three fields, most significant first:
//
//   - 42 bits: milliseconds since 2023-01-01T00:00:00Z. Enough for ~139
//     years, at which point it is no longer our problem.
//   - 10 bits: machine id, assigned per deployed process out-of-band.
//   - 11 bits: per-millisecond sequence.
//
// Identifiers serialize to JSON as strings; 64-bit values lose precision in
// JavaScript number parsing. The decoder still accepts bare numbers because
// early clients sent them.
package snowflake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Epoch is the identifier epoch, 2023-01-01T00:00:00Z, in Unix milliseconds.
const Epoch int64 = 1672531200000

const (
	timestampBits = 42
	machineBits   = 10
	sequenceBits  = 11

	machineShift   = sequenceBits
	timestampShift = sequenceBits + machineBits

	// MaxMachineID is one past the largest valid machine id.
	MaxMachineID = 1 << machineBits

	machineMask  = MaxMachineID - 1
	sequenceMask = 1<<sequenceBits - 1
)

// ID is a packed snowflake identifier.
type ID int64

// Pack assembles an ID from its three fields. Fields wider than their bit
// allocation are truncated.
func Pack(timestamp int64, machineID uint16, sequence uint16) ID {
	return ID(timestamp<<timestampShift |
		int64(machineID&machineMask)<<machineShift |
		int64(sequence&sequenceMask))
}

// Timestamp returns the embedded timestamp in milliseconds since Epoch.
func (id ID) Timestamp() int64 {
	return int64(id) >> timestampShift
}

// MachineID returns the embedded machine id.
func (id ID) MachineID() uint16 {
	return uint16(int64(id) >> machineShift & machineMask)
}

// Sequence returns the embedded per-millisecond sequence.
func (id ID) Sequence() uint16 {
	return uint16(int64(id) & sequenceMask)
}

// Time returns the embedded timestamp as wall-clock time.
func (id ID) Time() time.Time {
	return time.UnixMilli(id.Timestamp() + Epoch)
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Parse converts the decimal string form back into an ID.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse snowflake %q: negative", s)
	}
	return ID(n), nil
}

// MarshalJSON writes the canonical string form.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts either the canonical string form or a bare number.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Not a string, try a bare number.
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("snowflake must be a string or number: %s", data)
		}
		if n < 0 {
			return fmt.Errorf("snowflake must be non-negative, got %d", n)
		}
		*id = ID(n)
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

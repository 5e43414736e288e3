package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID is a JSON-RPC request identifier: either a string or a
// non-negative integer, unique within a connection per spec.md §3.
type ID struct {
	isString bool
	number   int64
	str      string
}

// NumberID builds a numeric request ID.
func NumberID(n int64) ID { return ID{number: n} }

// StringID builds a string request ID.
func StringID(s string) ID { return ID{isString: true, str: s} }

func (id ID) String() string {
	if id.isString {
		return id.str
	}
	return strconv.FormatInt(id.number, 10)
}

// MarshalJSON encodes the ID the way the wire protocol expects: a bare
// number or a bare string, never an object.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.number)
}

// UnmarshalJSON accepts either representation.
func (id *ID) UnmarshalJSON(data []byte) error {
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*id = ID{number: asNumber}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = ID{isString: true, str: asString}
		return nil
	}
	return fmt.Errorf("rpc: invalid id %s", data)
}

// IDGenerator produces client-generated request IDs unique within a
// connection. The default generator uses a monotonic counter stamped
// with a library-specific prefix (spec.md §3); NewUUIDGenerator builds
// one that issues google/uuid-backed IDs instead, for hosts that multiplex several clients over
// one transport and need collision-proof identifiers across them.
type IDGenerator struct {
	prefix  string
	counter atomic.Int64
	useUUID bool
}

// NewIDGenerator returns a counter-based generator namespaced by prefix.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// NewUUIDGenerator returns a generator that mints a random UUID per
// call instead of incrementing a counter.
func NewUUIDGenerator() *IDGenerator {
	return &IDGenerator{useUUID: true}
}

// Next returns the next request ID.
func (g *IDGenerator) Next() ID {
	if g.useUUID {
		return StringID(uuid.NewString())
	}
	n := g.counter.Add(1)
	return StringID(fmt.Sprintf("%s-%d", g.prefix, n))
}

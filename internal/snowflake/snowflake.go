// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

// Package snowflake generates collision-resistant, monotonically
// non-decreasing identifiers for fee commands, fee transactions, and log
// correlation IDs.
//
// IDs are 63-bit integers rendered as decimal strings:
//
//	41 bits  milliseconds since the custom epoch
//	 5 bits  node type (distinguishes record IDs from correlation IDs)
//	 5 bits  node ID (identifies the application instance)
//	12 bits  per-millisecond sequence
//
// Because the timestamp occupies the high bits, IDs sort by creation time,
// which keeps the deterministic ordering used by the paginated sweeps stable
// as new rows arrive.
package snowflake

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	nodeTypeBits = 5
	nodeIDBits   = 5
	sequenceBits = 12

	maxNodeType = (1 << nodeTypeBits) - 1
	maxNodeID   = (1 << nodeIDBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeTypeShift  = sequenceBits + nodeIDBits
	nodeIDShift    = sequenceBits
	timestampShift = sequenceBits + nodeIDBits + nodeTypeBits
)

// Node type values carried in generated IDs.
const (
	// NodeTypeRecord marks IDs used as command and transaction codes.
	NodeTypeRecord int64 = 6

	// NodeTypeLog marks IDs used as log correlation IDs.
	NodeTypeLog int64 = 3
)

// epoch is 2024-01-01T00:00:00Z in Unix milliseconds.
const epoch int64 = 1704067200000

// Generator produces snowflake IDs. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	nodeType int64
	nodeID   int64
	lastTime int64
	sequence int64

	// nowMillis is swappable for tests.
	nowMillis func() int64
}

// New creates a generator for the given node type and node ID.
func New(nodeType, nodeID int64) (*Generator, error) {
	if nodeType < 0 || nodeType > maxNodeType {
		return nil, fmt.Errorf("node type %d out of range [0,%d]", nodeType, maxNodeType)
	}
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, fmt.Errorf("node id %d out of range [0,%d]", nodeID, maxNodeID)
	}
	return &Generator{
		nodeType:  nodeType,
		nodeID:    nodeID,
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Next returns the next ID as a decimal string.
//
// Within one generator the returned values are strictly increasing. A clock
// that reads earlier than the previous call is treated as unchanged, so a
// small backwards step (NTP adjustment) cannot produce an out-of-order or
// duplicate ID; the sequence counter absorbs the interval instead.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowMillis()
	if now < g.lastTime {
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond; spin to the next one.
			for now <= g.lastTime {
				now = g.nowMillis()
				if now < g.lastTime {
					now = g.lastTime + 1
				}
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	id := (now-epoch)<<timestampShift |
		g.nodeType<<nodeTypeShift |
		g.nodeID<<nodeIDShift |
		g.sequence

	return strconv.FormatInt(id, 10)
}

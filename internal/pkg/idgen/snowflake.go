package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the request ID generator with a node ID.
// Only the first call has any effect.
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// RequestID returns a new snowflake ID for the X-Request-ID header
func RequestID() string {
	// No-op once a node exists
	_ = Initialize(1)
	return node.Generate().String()
}

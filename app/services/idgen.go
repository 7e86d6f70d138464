package services

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// OrderCodeGenerator issues unique gateway order codes
type OrderCodeGenerator interface {
	Next() int64
}

// Order codes travel through the gateway as JSON numbers, so ids must stay below 2^53.
// 41 bits of milliseconds since 2024-01-01 plus 4 node bits and 8 step bits fit.
const (
	orderCodeEpoch    = int64(1704067200000)
	orderCodeNodeBits = uint8(4)
	orderCodeStepBits = uint8(8)
)

var configureSnowflake sync.Once

type snowflakeOrderCodes struct {
	node *snowflake.Node
}

// NewOrderCodeGenerator creates a snowflake backed generator for nodeID in [0, 15]
func NewOrderCodeGenerator(nodeID int64) (OrderCodeGenerator, error) {
	configureSnowflake.Do(func() {
		snowflake.Epoch = orderCodeEpoch
		snowflake.NodeBits = orderCodeNodeBits
		snowflake.StepBits = orderCodeStepBits
	})

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init order code node: %w", err)
	}
	return &snowflakeOrderCodes{node: node}, nil
}

func (g *snowflakeOrderCodes) Next() int64 {
	return g.node.Generate().Int64()
}

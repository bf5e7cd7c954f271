// Package chainstatus checks that a TRON node is producing blocks with
// traffic, through its Ethereum-compatible JSON-RPC endpoint.
package chainstatus

import (
	"context"
	"fmt"

	"github.com/onrik/ethrpc"

	"github.com/swanchain/deposit-watch/pkg/log"
)

const (
	defaultBlocks          = 10
	defaultMinTransactions = 5
)

type blockReader interface {
	EthBlockNumber() (int, error)
	EthGetBlockByNumber(number int, withTransactions bool) (*ethrpc.Block, error)
}

type Checker struct {
	client blockReader

	// Blocks is how many recent blocks are inspected.
	Blocks int
	// MinTransactions is the least number of transactions those blocks
	// must hold for the chain to count as healthy.
	MinTransactions int
}

func New(rpcURL string) *Checker {
	log.Infof("Connecting to TRON node at: %s", rpcURL)
	return newChecker(ethrpc.New(rpcURL))
}

func newChecker(client blockReader) *Checker {
	return &Checker{
		client:          client,
		Blocks:          defaultBlocks,
		MinTransactions: defaultMinTransactions,
	}
}

// Check counts the transactions of the last Blocks blocks and returns an
// error when fewer than MinTransactions were found.
func (c *Checker) Check(ctx context.Context) error {
	blockNumber, err := c.client.EthBlockNumber()
	if err != nil {
		return fmt.Errorf("failed to get the latest block number: %w", err)
	}

	startBlock := blockNumber - c.Blocks
	if startBlock < 0 {
		startBlock = 0
	}

	var totalTransactions int
	for i := startBlock; i <= blockNumber; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := c.client.EthGetBlockByNumber(i, true)
		if err != nil {
			return fmt.Errorf("failed to get block %d: %w", i, err)
		}

		totalTransactions += len(block.Transactions)
		log.Debugf("Block %d has %d transactions", i, len(block.Transactions))
	}

	log.Infof("Total transactions in blocks %d-%d: %d", startBlock, blockNumber, totalTransactions)

	if totalTransactions < c.MinTransactions {
		return fmt.Errorf("less than %d transactions in blocks %d-%d", c.MinTransactions, startBlock, blockNumber)
	}
	return nil
}

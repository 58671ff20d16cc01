// Package chain defines the on-chain token transfer boundary used for
// contest payouts. Real wallet management lives outside this service; the
// simulated client is what runs in development and tests.
package chain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// TransferClient sends contest payout tokens to a winner address.
type TransferClient interface {
	Transfer(ctx context.Context, toAddress string, amount float64) (transactionID string, err error)
}

// SimulatedTransferClient pretends to transfer and returns a locally
// generated transaction id.
type SimulatedTransferClient struct {
	logger logging.Logger
}

func NewSimulatedTransferClient(logger logging.Logger) *SimulatedTransferClient {
	return &SimulatedTransferClient{logger: logger}
}

func (c *SimulatedTransferClient) Transfer(ctx context.Context, toAddress string, amount float64) (string, error) {
	if toAddress == "" {
		return "", fmt.Errorf("transfer requires a destination address")
	}
	txID := "simulated-tx-" + uuid.NewString()
	c.logger.WithFields(logging.Fields{
		"to":     toAddress,
		"amount": amount,
		"tx_id":  txID,
	}).Info("Simulated token transfer")
	return txID, nil
}

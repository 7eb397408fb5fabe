// Package gas estimates the L2 gas needed for the reviewed transaction and
// applies a safety buffer.
package gas

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"
)

// Client is the one RPC method this package needs. *ethclient.Client
// satisfies it.
type Client interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// CallFromLink decodes a Tenderly-style simulation link into the call
// message it simulated.
func CallFromLink(link string) (ethereum.CallMsg, error) {
	u, err := url.Parse(link)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("error parsing simulation link: %w", err)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("error parsing simulation link query: %w", err)
	}

	for _, field := range []string{"from", "contractAddress", "rawFunctionInput"} {
		if query.Get(field) == "" {
			return ethereum.CallMsg{}, fmt.Errorf("simulation link missing %s parameter", field)
		}
	}

	recipient := common.HexToAddress(query.Get("contractAddress"))
	return ethereum.CallMsg{
		From: common.HexToAddress(query.Get("from")),
		To:   &recipient,
		Data: common.FromHex(query.Get("rawFunctionInput")),
	}, nil
}

// Estimate asks the node for a gas estimate and pads it by bufferPct
// percent. Transient RPC failures are retried with Fibonacci backoff.
func Estimate(ctx context.Context, client Client, msg ethereum.CallMsg, bufferPct uint64) (uint64, error) {
	var estimate uint64

	backoff := retry.WithMaxDuration(time.Second*30, retry.NewFibonacci(time.Millisecond*100))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		gas, err := client.EstimateGas(ctx, msg)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error estimating gas: %w", err))
		}
		estimate = gas
		return nil
	})
	if err != nil {
		return 0, err
	}

	return estimate * (100 + bufferPct) / 100, nil
}

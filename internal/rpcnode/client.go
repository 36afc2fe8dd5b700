// Package rpcnode implements the coordinator's ChainObserver and RPCClient
// collaborators against a live bitcoind over JSON-RPC: broadcasting raw
// transactions, polling confirmation status, and passing through fee
// estimates. It is the only package that talks to the node directly.
package rpcnode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
)

// nodeRPC is the subset of *rpcclient.Client this package drives. It
// exists so tests can swap in a fake node without a live bitcoind —
// *rpcclient.Client satisfies it as-is.
type nodeRPC interface {
	GetBlockCount() (int64, error)
	GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
	EstimateSmartFee(confTarget int64, mode *btcjson.EstimateSmartFeeMode) (*btcjson.EstimateSmartFeeResult, error)
	Shutdown()
}

// Client wraps a bitcoind JSON-RPC connection with the rate limiting and
// circuit breaking every call into the node must pass through. It runs in
// plain HTTP POST mode (no websocket notifications): the coordinator is
// tick-driven and polls, it never waits on a push.
type Client struct {
	rpc     nodeRPC
	limiter *rateLimiter
	breaker *circuitBreaker
}

// ErrCircuitOpen is returned when a call is rejected because the circuit
// breaker has tripped on a run of consecutive node failures.
var ErrCircuitOpen = fmt.Errorf("rpcnode: circuit breaker open")

// NewClient dials a bitcoind node configured for JSON-RPC over HTTP POST.
func NewClient(cfg *config.Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCHost,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPass,
		HTTPPostMode: true,
		DisableTLS:   !cfg.RPCTLS,
	}

	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("dial rpc node: %w", err)
	}

	slog.Info("rpcnode client connected", "host", cfg.RPCHost, "tls", cfg.RPCTLS)

	return &Client{
		rpc:     rpc,
		limiter: newRateLimiter(config.RPCRateLimitPerSec),
		breaker: newCircuitBreaker(config.RPCCircuitBreakerThreshold, config.RPCCircuitBreakerCooldown),
	}, nil
}

// newClientWithBackend builds a Client around an arbitrary nodeRPC
// implementation, bypassing the network dial in NewClient. Used by tests.
func newClientWithBackend(rpc nodeRPC) *Client {
	return &Client{
		rpc:     rpc,
		limiter: newRateLimiter(1000),
		breaker: newCircuitBreaker(config.RPCCircuitBreakerThreshold, config.RPCCircuitBreakerCooldown),
	}
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Shutdown()
}

// call runs fn under the rate limiter and circuit breaker shared by every
// RPC method on Client, wrapping fn's error as transient (see
// config.IsTransient).
func (c *Client) call(name string, fn func() error) error {
	if !c.breaker.allow() {
		slog.Warn("rpcnode call rejected, circuit open", "method", name)
		return config.NewTransientErrorWithRetry(ErrCircuitOpen, config.RPCCircuitBreakerCooldown)
	}

	if err := c.limiter.wait(context.Background()); err != nil {
		return fmt.Errorf("rpcnode rate limiter: %w", err)
	}

	err := fn()
	if err != nil {
		c.breaker.recordFailure()
		slog.Warn("rpcnode call failed", "method", name, "error", err)
		return config.NewTransientError(fmt.Errorf("%s: %w", name, err))
	}

	c.breaker.recordSuccess()
	return nil
}

package onchain

import "errors"

var (
	// ErrCannotConnect is returned when the RPC node does not answer eth_chainId.
	ErrCannotConnect = errors.New("cannot connect to RPC node")

	// ErrNotContract is returned when the address has no code (an EOA).
	ErrNotContract = errors.New("no contract code found (EOA address)")

	// ErrNoRPCURL is returned when no RPC endpoint is known for a chain.
	ErrNoRPCURL = errors.New("no RPC URL configured for chain")

	// ErrInvalidResponse is returned when a result cannot be decoded.
	ErrInvalidResponse = errors.New("invalid RPC response")
)

package onchain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nao1215/sentinel/internal/model"
)

// Caller is the subset of JSON-RPC used by Checker.
// RPCClient implements it; tests substitute fakes.
type Caller interface {
	ChainID(ctx context.Context) (uint64, error)
	GetCode(ctx context.Context, address model.Address) ([]byte, error)
	Call(ctx context.Context, to model.Address, data []byte) ([]byte, error)
}

// Result is the outcome of the on-chain checks.
type Result struct {
	// OnChain holds the values shown to users.
	OnChain *model.OnChainResult

	// Findings are informational and honeypot findings. They do not
	// affect the static risk score.
	Findings []model.Finding
}

// Checker runs the on-chain checks for one chain.
type Checker struct {
	rpc    Caller
	chain  model.Chain
	logger *slog.Logger
}

// NewChecker creates a Checker. A nil logger discards output.
func NewChecker(chain model.Chain, rpc Caller, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{rpc: rpc, chain: chain, logger: logger}
}

// Check inspects address. When implementation is non-nil (the explorer
// flagged a proxy), its bytecode is also searched for transfer().
//
// Connection failures and addresses without code return an error together
// with a Result whose OnChain.Error carries the user-facing message.
func (c *Checker) Check(ctx context.Context, address model.Address, implementation *model.Address) (*Result, error) {
	result := &Result{OnChain: &model.OnChainResult{}}
	oc := result.OnChain

	c.logger.Debug("connecting to RPC", "chain", c.chain)

	chainID, err := c.rpc.ChainID(ctx)
	if err != nil {
		oc.Error = fmt.Sprintf("Cannot connect to %s RPC node.", c.chain.Title())
		return result, fmt.Errorf("%w (%s): %w", ErrCannotConnect, c.chain.Title(), err)
	}
	oc.ChainID = chainID

	if want := c.chain.ID(); want != 0 && chainID != want {
		result.Findings = append(result.Findings, model.NewFinding(
			model.FindingChainIDMismatch,
			fmt.Sprintf("RPC endpoint reports chain id %d, expected %d.", chainID, want),
			strconv.FormatUint(chainID, 10),
			"rpc",
		))
	}

	code, err := c.rpc.GetCode(ctx, address)
	if err != nil {
		oc.Error = "Failed to read contract code."
		return result, fmt.Errorf("failed to read code: %w", err)
	}
	if len(code) == 0 {
		oc.Error = "No contract code found (EOA address)."
		return result, ErrNotContract
	}
	oc.CodeSize = len(code)

	c.checkToken(ctx, address, oc)
	result.Findings = append(result.Findings, c.checkOwner(ctx, address, oc)...)

	oc.TransferPresent = HasSelector(code, selectorTransfer)
	if !oc.TransferPresent && implementation != nil && !implementation.IsZero() {
		implCode, err := c.rpc.GetCode(ctx, *implementation)
		if err != nil {
			c.logger.Debug("failed to read implementation code", "implementation", implementation.String(), "error", err)
		} else {
			oc.TransferPresent = HasSelector(implCode, selectorTransfer)
		}
	}

	if !oc.TransferPresent {
		oc.HoneypotRisk = true
		result.Findings = append(result.Findings, model.NewFinding(
			model.FindingPossibleHoneypot,
			"Possible Honeypot (transfer() missing)",
			"transfer(address,uint256)",
			"bytecode",
		))
	}

	return result, nil
}

// checkToken fills name and symbol. Both must succeed, otherwise the token
// is reported as unknown.
func (c *Checker) checkToken(ctx context.Context, address model.Address, oc *model.OnChainResult) {
	name, err := c.callString(ctx, address, methodName)
	if err != nil {
		c.logger.Debug("name() failed", "error", err)
		return
	}
	symbol, err := c.callString(ctx, address, methodSymbol)
	if err != nil {
		c.logger.Debug("symbol() failed", "error", err)
		return
	}
	oc.Name = name
	oc.Symbol = symbol
}

func (c *Checker) checkOwner(ctx context.Context, address model.Address, oc *model.OnChainResult) []model.Finding {
	data, err := c.call(ctx, address, methodOwner)
	if err == nil {
		var owner model.Address
		owner, err = decodeAddress(data)
		if err == nil {
			oc.OwnerFound = true
			oc.Owner = owner.String()
			if owner.IsZero() {
				oc.OwnershipRenounced = true
				return []model.Finding{model.NewFinding(
					model.FindingOwnershipRenounced,
					"Ownership renounced (owner is the zero address).",
					owner.String(),
					"owner()",
				)}
			}
			return nil
		}
	}

	c.logger.Debug("owner() failed", "error", err)
	return []model.Finding{model.NewFinding(
		model.FindingOwnerNotFound,
		"Owner() not found (may use custom access control).",
		"",
		"owner()",
	)}
}

// call invokes a no-argument token method.
func (c *Checker) call(ctx context.Context, address model.Address, method string) ([]byte, error) {
	input, err := tokenABI.Pack(method)
	if err != nil {
		return nil, err
	}
	return c.rpc.Call(ctx, address, input)
}

func (c *Checker) callString(ctx context.Context, address model.Address, method string) (string, error) {
	data, err := c.call(ctx, address, method)
	if err != nil {
		return "", err
	}
	return decodeString(method, data)
}

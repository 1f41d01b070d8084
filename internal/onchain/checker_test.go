package onchain

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/nao1215/sentinel/internal/model"
)

// fakeCaller serves canned results keyed by address and selector.
type fakeCaller struct {
	chainID    uint64
	chainIDErr error
	code       map[model.Address][]byte
	calls      map[string][]byte
}

func (f *fakeCaller) ChainID(context.Context) (uint64, error) {
	return f.chainID, f.chainIDErr
}

func (f *fakeCaller) GetCode(_ context.Context, address model.Address) ([]byte, error) {
	return f.code[address], nil
}

func (f *fakeCaller) Call(_ context.Context, _ model.Address, data []byte) ([]byte, error) {
	if out, ok := f.calls[hex.EncodeToString(data)]; ok {
		return out, nil
	}
	return nil, revertError{}
}

var (
	tokenAddr = model.MustParseAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	implAddr  = model.MustParseAddress("0xd1220a0cf47c7b9be7a2e6ba89f429762e7b9adb")
	ownerAddr = model.MustParseAddress("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
)

// codeWith returns fake runtime bytecode embedding the given selectors.
func codeWith(selectors ...[]byte) []byte {
	code := []byte{0x60, 0x80, 0x60, 0x40}
	for _, s := range selectors {
		code = append(code, 0x63)
		code = append(code, s...)
	}
	return code
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy token", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{
			chainID: 1,
			code:    map[model.Address][]byte{tokenAddr: codeWith(selectorTransfer)},
			calls: map[string][]byte{
				"06fdde03": encodeString("Wrapped Ether"),
				"95d89b41": encodeString("WETH"),
				"8da5cb5b": encodeAddress(ownerAddr),
			},
		}
		res, err := NewChecker(model.ChainEthereum, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		oc := res.OnChain
		if oc.Token() != "Wrapped Ether (WETH)" {
			t.Errorf("token = %q", oc.Token())
		}
		if !oc.OwnerFound || oc.Owner != ownerAddr.String() || oc.OwnershipRenounced {
			t.Errorf("unexpected owner state %+v", oc)
		}
		if !oc.TransferPresent || oc.HoneypotRisk {
			t.Error("expected transfer present and no honeypot risk")
		}
		if len(res.Findings) != 0 {
			t.Errorf("expected no findings, got %+v", res.Findings)
		}
	})

	t.Run("honeypot without owner", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{
			chainID: 56,
			code:    map[model.Address][]byte{tokenAddr: codeWith(selector(methodName))},
			calls:   map[string][]byte{"06fdde03": encodeString("Trap")},
		}
		res, err := NewChecker(model.ChainBSC, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		oc := res.OnChain
		if oc.Token() != "Unknown Token" {
			t.Errorf("token = %q (symbol() failed, so the token is unknown)", oc.Token())
		}
		if oc.OwnerFound {
			t.Error("expected owner not found")
		}
		if !oc.HoneypotRisk {
			t.Error("expected honeypot risk")
		}

		types := map[string]model.Severity{}
		for _, f := range res.Findings {
			types[f.Type] = f.Severity
		}
		if types[model.FindingPossibleHoneypot] != model.SeverityHigh {
			t.Error("expected high severity possible_honeypot finding")
		}
		if _, ok := types[model.FindingOwnerNotFound]; !ok {
			t.Error("expected owner_not_found finding")
		}
	})

	t.Run("renounced owner", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{
			chainID: 137,
			code:    map[model.Address][]byte{tokenAddr: codeWith(selectorTransfer)},
			calls:   map[string][]byte{"8da5cb5b": encodeAddress(model.Address{})},
		}
		res, err := NewChecker(model.ChainPolygon, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.OnChain.OwnershipRenounced {
			t.Error("expected ownership renounced")
		}
		if len(res.Findings) != 1 || res.Findings[0].Type != model.FindingOwnershipRenounced {
			t.Errorf("unexpected findings %+v", res.Findings)
		}
	})

	t.Run("proxy implementation has transfer", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{
			chainID: 1,
			code: map[model.Address][]byte{
				tokenAddr: codeWith(),
				implAddr:  codeWith(selectorTransfer),
			},
		}
		impl := implAddr
		res, err := NewChecker(model.ChainEthereum, rpc, nil).Check(context.Background(), tokenAddr, &impl)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.OnChain.TransferPresent || res.OnChain.HoneypotRisk {
			t.Error("expected transfer found in implementation")
		}
	})

	t.Run("chain id mismatch", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{
			chainID: 56,
			code:    map[model.Address][]byte{tokenAddr: codeWith(selectorTransfer)},
			calls:   map[string][]byte{"8da5cb5b": encodeAddress(ownerAddr)},
		}
		res, err := NewChecker(model.ChainEthereum, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Findings) != 1 || res.Findings[0].Type != model.FindingChainIDMismatch {
			t.Fatalf("unexpected findings %+v", res.Findings)
		}
		if res.Findings[0].Severity != model.SeverityMedium {
			t.Errorf("severity = %v", res.Findings[0].Severity)
		}
	})
}

func TestCheckErrors(t *testing.T) {
	t.Parallel()

	t.Run("cannot connect", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{chainIDErr: errors.New("dial tcp: connection refused")}
		res, err := NewChecker(model.ChainEthereum, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if !errors.Is(err, ErrCannotConnect) {
			t.Fatalf("expected ErrCannotConnect, got %v", err)
		}
		if res.OnChain.Error != "Cannot connect to Ethereum RPC node." {
			t.Errorf("error = %q", res.OnChain.Error)
		}
	})

	t.Run("externally owned account", func(t *testing.T) {
		t.Parallel()

		rpc := &fakeCaller{chainID: 1, code: map[model.Address][]byte{}}
		res, err := NewChecker(model.ChainEthereum, rpc, nil).Check(context.Background(), tokenAddr, nil)
		if !errors.Is(err, ErrNotContract) {
			t.Fatalf("expected ErrNotContract, got %v", err)
		}
		if res.OnChain.Error != "No contract code found (EOA address)." {
			t.Errorf("error = %q", res.OnChain.Error)
		}
		if fields := res.OnChain.Fields(); len(fields) != 1 {
			t.Errorf("expected only the error field, got %v", fields)
		}
	})
}

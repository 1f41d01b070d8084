package onchain

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nao1215/sentinel/internal/model"
)

// Token methods called or looked up by the checks.
const (
	methodName     = "name"
	methodSymbol   = "symbol"
	methodOwner    = "owner"
	methodTransfer = "transfer"
)

// wordSize is the ABI word length in bytes.
const wordSize = 32

// tokenABIJSON is the ERC-20 metadata, Ownable owner() and ERC-20 transfer.
const tokenABIJSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// legacyTokenABIJSON is the metadata of tokens that predate the string
// return type (MKR, SAI) and answer with bytes32.
const legacyTokenABIJSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

var (
	tokenABI       = mustParseABI(tokenABIJSON)
	legacyTokenABI = mustParseABI(legacyTokenABIJSON)

	selectorTransfer = selector(methodTransfer)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("onchain: invalid token ABI: %v", err))
	}
	return parsed
}

// selector returns the 4-byte id of a token method.
func selector(method string) []byte {
	return tokenABI.Methods[method].ID
}

// HasSelector reports whether code contains selector. Solidity dispatchers
// compare the calldata selector against PUSH4 immediates, so a selector
// absent from the bytecode cannot be dispatched.
func HasSelector(code, selector []byte) bool {
	return len(selector) > 0 && bytes.Contains(code, selector)
}

// decodeString decodes the string returned by method. A single NUL-padded
// word is accepted as the bytes32 form of older tokens.
func decodeString(method string, data []byte) (string, error) {
	out, err := tokenABI.Unpack(method, data)
	if err == nil && len(out) == 1 {
		if s, ok := out[0].(string); ok && utf8.ValidString(s) {
			return s, nil
		}
	}

	if len(data) == wordSize {
		legacy, lerr := legacyTokenABI.Unpack(method, data)
		if lerr == nil && len(legacy) == 1 {
			if word, ok := legacy[0].([32]byte); ok {
				trimmed := bytes.TrimRight(word[:], "\x00")
				if utf8.Valid(trimmed) {
					return string(trimmed), nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: cannot decode %s() from %d bytes", ErrInvalidResponse, method, len(data))
}

// decodeAddress decodes the result of owner().
func decodeAddress(data []byte) (model.Address, error) {
	out, err := tokenABI.Unpack(methodOwner, data)
	if err != nil {
		return model.Address{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return model.Address{}, fmt.Errorf("%w: owner() returned %T", ErrInvalidResponse, out[0])
	}
	return model.Address(addr), nil
}

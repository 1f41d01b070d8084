package model

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the size of an EVM address in bytes.
const AddressLength = common.AddressLength

// Address validation errors.
var (
	// ErrInvalidAddress is returned when the input is not 0x followed by 40 hex digits.
	ErrInvalidAddress = errors.New("invalid address format: expected 0x followed by 40 hex characters")

	// ErrInvalidChecksum is returned when a mixed-case address fails EIP-55 validation.
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// Address is a 20-byte EVM account or contract address.
type Address common.Address

// ParseAddress parses and validates a hex address.
//
// The 0x prefix is required. All-lowercase and all-uppercase hex are
// accepted as-is; mixed-case input must carry a valid EIP-55 checksum,
// which is the same rule wallets and web3 libraries apply.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*AddressLength || !strings.HasPrefix(strings.ToLower(s), "0x") || !common.IsHexAddress(s) {
		return Address{}, ErrInvalidAddress
	}

	addr := Address(common.HexToAddress(s))
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.String()[2:] != body {
		return Address{}, ErrInvalidChecksum
	}
	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// It is intended for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the EIP-55 checksummed representation.
func (a Address) String() string {
	return common.Address(a).Hex()
}

// Hex returns the lowercase 0x-prefixed form, used for storage keys.
func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

// Short returns the first six characters of the checksummed address
// ("0x" plus four hex digits), used in report file names.
func (a Address) Short() string {
	return a.String()[:6]
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return common.Address(a) == common.Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

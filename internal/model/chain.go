package model

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Chain identifies an EVM network supported by the scanner.
type Chain string

// Supported chains.
const (
	// ChainEthereum is Ethereum mainnet.
	ChainEthereum Chain = "ethereum"

	// ChainBSC is BNB Smart Chain.
	ChainBSC Chain = "bsc"

	// ChainPolygon is Polygon PoS.
	ChainPolygon Chain = "polygon"
)

// ErrUnsupportedChain is returned by ParseChain for unknown chain names.
var ErrUnsupportedChain = errors.New("unsupported chain")

// chainAliases maps every accepted user spelling to its canonical chain.
var chainAliases = map[string]Chain{
	"eth":      ChainEthereum,
	"ethereum": ChainEthereum,
	"bnb":      ChainBSC,
	"bsc":      ChainBSC,
	"matic":    ChainPolygon,
	"polygon":  ChainPolygon,
}

// chainIDs holds the EIP-155 chain id of each supported chain.
var chainIDs = map[Chain]uint64{
	ChainEthereum: 1,
	ChainBSC:      56,
	ChainPolygon:  137,
}

// ParseChain resolves a user-supplied chain name or alias.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseChain(name string) (Chain, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := chainAliases[key]; ok {
		return c, nil
	}
	return "", ErrUnsupportedChain
}

// SupportedChains returns the canonical chains in display order.
func SupportedChains() []Chain {
	return []Chain{ChainEthereum, ChainBSC, ChainPolygon}
}

// String returns the canonical chain name.
func (c Chain) String() string {
	return string(c)
}

// Title returns the title-cased chain name used in user-facing messages
// (e.g. "Ethereum", "Bsc").
func (c Chain) Title() string {
	// A Caser is stateful, so one is created per call.
	return cases.Title(language.English).String(string(c))
}

// ID returns the EIP-155 chain id, or 0 for an unknown chain.
func (c Chain) ID() uint64 {
	return chainIDs[c]
}

// IsValid reports whether c is one of the supported chains.
func (c Chain) IsValid() bool {
	_, ok := chainIDs[c]
	return ok
}

// Package explorer fetches verified contract source from Blockscout
// block explorers.
//
// Blockscout exposes an Etherscan-compatible "getsourcecode" endpoint. Its
// result field is loosely typed: a list with one entry, a bare message
// string when the address is unknown, or a single object. Client normalizes
// all three into a SourceInfo.
//
// An unverified contract is not an error. SourceInfo.Verified is false and
// SourceCode is empty. Errors are reserved for transport and decoding
// failures so that callers can tell "no source" from "explorer down".
package explorer

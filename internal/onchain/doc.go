// Package onchain queries a contract over Ethereum JSON-RPC.
//
// The checks are deliberately shallow: the chain id (which doubles as a
// connectivity check), whether the address holds code, the ERC-20 name and
// symbol, the owner() result and whether the transfer(address,uint256)
// selector appears in the runtime bytecode. A token without a transfer
// entry point is flagged as a possible honeypot.
//
// RPCClient wraps go-ethereum's ethclient. Call data and return values are
// packed and unpacked with accounts/abi against a small ERC-20 and Ownable
// ABI.
package onchain

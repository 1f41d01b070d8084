package onchain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	logging "github.com/nao1215/sentinel/internal/log"
	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/model"
)

// DefaultTimeout is the request timeout used when no HTTP client is supplied.
const DefaultTimeout = 15 * time.Second

// defaultRPCURLs are public endpoints that need no API key.
var defaultRPCURLs = map[model.Chain]string{
	model.ChainEthereum: "https://eth.llamarpc.com",
	model.ChainBSC:      "https://bsc-dataseed.binance.org",
	model.ChainPolygon:  "https://polygon-rpc.com",
}

// DefaultRPCURL returns the public RPC endpoint for chain.
func DefaultRPCURL(chain model.Chain) (string, bool) {
	u, ok := defaultRPCURLs[chain]
	return u, ok
}

// RPCClient queries one chain's node through ethclient.
//
// Errors returned by its methods never contain the endpoint's credentials:
// hosted providers put the API key in the URL path, and transport errors
// quote the URL.
type RPCClient struct {
	chain model.Chain
	eth   *ethclient.Client
}

// NewRPCClient creates a client for url. A nil hc uses a client with
// DefaultTimeout. No connection is made until the first call.
func NewRPCClient(chain model.Chain, url string, hc *http.Client) (*RPCClient, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRPCURL, chain)
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	rc, err := rpc.DialOptions(context.Background(), url, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, logging.RedactError(fmt.Errorf("failed to create %s RPC client: %w", chain, err))
	}
	return &RPCClient{chain: chain, eth: ethclient.NewClient(rc)}, nil
}

// done records the request and masks credentials in err.
func (c *RPCClient) done(method string, err error) error {
	metrics.RecordRPCRequest(c.chain.String(), method, err)
	if err == nil {
		return nil
	}
	return logging.RedactError(fmt.Errorf("%s: %w", method, err))
}

// ChainID returns the chain id reported by eth_chainId.
func (c *RPCClient) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.eth.ChainID(ctx)
	if err == nil && !id.IsUint64() {
		err = fmt.Errorf("%w: chain id %s overflows uint64", ErrInvalidResponse, id)
	}
	if err := c.done("eth_chainId", err); err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// GetCode returns the runtime bytecode at address for the latest block.
func (c *RPCClient) GetCode(ctx context.Context, address model.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, common.Address(address), nil)
	if err := c.done("eth_getCode", err); err != nil {
		return nil, err
	}
	return code, nil
}

// Call executes a read-only eth_call against address at the latest block.
func (c *RPCClient) Call(ctx context.Context, to model.Address, data []byte) ([]byte, error) {
	target := common.Address(to)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err := c.done("eth_call", err); err != nil {
		return nil, err
	}
	return out, nil
}

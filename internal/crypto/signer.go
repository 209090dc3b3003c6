package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	domainName    = "Limitless CTF Exchange"
	domainVersion = "1"

	// collateralDecimals is the USDC scale used for signed amounts.
	collateralDecimals = 1e6
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	orderIntentTypeHash = ethcrypto.Keccak256(
		[]byte("Order(string marketId,uint8 side,uint256 amount,uint256 nonce,uint256 expiration)"),
	)
)

// OrderIntent is the signed part of a market order.
type OrderIntent struct {
	MarketID   string
	Side       domain.OrderSide
	Amount     float64 // collateral
	Nonce      int64
	Expiration int64 // unix seconds, 0 for none
}

// ScaledAmount returns Amount in collateral base units.
func (o OrderIntent) ScaledAmount() *big.Int {
	return big.NewInt(int64(math.Round(o.Amount * collateralDecimals)))
}

// OrderSigner signs order intents with a secp256k1 wallet key.
type OrderSigner struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	domainSep []byte
}

// NewOrderSigner builds a signer for chainID and the exchange contract.
func NewOrderSigner(privateKeyHex string, chainID int64, verifyingContract string) (*OrderSigner, error) {
	raw, err := decodeKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}
	pk, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	contract := common.HexToAddress(verifyingContract)
	return &OrderSigner{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep: ethcrypto.Keccak256(concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(domainName)),
			ethcrypto.Keccak256([]byte(domainVersion)),
			bigIntTo32Bytes(big.NewInt(chainID)),
			common.LeftPadBytes(contract.Bytes(), 32),
		)),
	}, nil
}

// Address returns the signing wallet address.
func (s *OrderSigner) Address() common.Address { return s.address }

// Digest returns the EIP-712 digest of o.
func (s *OrderSigner) Digest(o OrderIntent) []byte {
	side := int64(0)
	if o.Side == domain.OrderSideSell {
		side = 1
	}
	structHash := ethcrypto.Keccak256(concatBytes(
		orderIntentTypeHash,
		ethcrypto.Keccak256([]byte(o.MarketID)),
		bigIntTo32Bytes(big.NewInt(side)),
		bigIntTo32Bytes(o.ScaledAmount()),
		bigIntTo32Bytes(big.NewInt(o.Nonce)),
		bigIntTo32Bytes(big.NewInt(o.Expiration)),
	))
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, s.domainSep, structHash))
}

// Sign returns the hex 65-byte signature (r || s || v) of o, with v in
// {27, 28}.
func (s *OrderSigner) Sign(o OrderIntent) (string, error) {
	sig, err := ethcrypto.Sign(s.Digest(o), s.key)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: %w: %v", domain.ErrSigningFailed, err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}

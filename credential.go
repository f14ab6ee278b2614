package txsim

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Header bytes treated as key-hash credentials. Every other header is taken
// to be a script hash.
var keyCredentialHeaders = map[byte]bool{
	0xe0: true,
	0x00: true,
	0x60: true,
	0x10: true,
}

// ResolveCredential decodes bech32 credential text (a header byte followed by
// at least one 28-byte hash) and returns the leading hash as hex together
// with whether it denotes a script.
func ResolveCredential(text string) (string, bool, error) {
	decoded, err := decodeBech32(text)
	if err != nil {
		return "", false, err
	}
	if len(decoded) < 1+AddressHashSize {
		return "", false, &FormatError{
			Msg: fmt.Sprintf("non-standard format in credential %q at position 1: payload too short", text),
		}
	}
	isScript := !keyCredentialHeaders[decoded[0]]
	return hex.EncodeToString(decoded[1 : 1+AddressHashSize]), isScript, nil
}

func decodeBech32(text string) ([]byte, error) {
	// Cardano addresses exceed the 90 character limit of BIP-173
	_, data, err := bech32.DecodeNoLimit(text)
	if err != nil {
		return nil, &FormatError{
			Msg: fmt.Sprintf("non-standard format in credential %q at position 1", text),
			Err: err,
		}
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, &FormatError{
			Msg: fmt.Sprintf("non-standard format in credential %q at position 1", text),
			Err: err,
		}
	}
	return decoded, nil
}

// addressParts is a Shelley address split into its components.
type addressParts struct {
	header      byte
	paymentHash []byte
	stakeHash   []byte
}

func splitAddress(addr string) (addressParts, error) {
	decoded, err := decodeBech32(addr)
	if err != nil {
		return addressParts{}, err
	}
	if len(decoded) < 1+AddressHashSize {
		return addressParts{}, &FormatError{Msg: fmt.Sprintf("address %q is too short", addr)}
	}
	parts := addressParts{
		header:      decoded[0],
		paymentHash: decoded[1 : 1+AddressHashSize],
	}
	// Only base addresses carry a stake hash; pointer addresses are ignored
	addrType := (parts.header & AddressHeaderTypeMask) >> 4
	if addrType <= addressTypeScriptScript && len(decoded) >= 1+2*AddressHashSize {
		parts.stakeHash = decoded[1+AddressHashSize : 1+2*AddressHashSize]
	}
	return parts, nil
}

// stakeAddress renders the reward address text for a base address's stake
// part, or "" when the address has none.
func (p addressParts) stakeAddress() (string, error) {
	if p.stakeHash == nil {
		return "", nil
	}
	network := p.header & AddressHeaderNetworkMask
	header := byte(addressTypeNoneKey<<4) | network
	if (p.header>>4)&0x2 != 0 {
		header = byte(addressTypeNoneScript<<4) | network
	}
	hrp := "stake_test"
	if network == byte(Mainnet) {
		hrp = "stake"
	}
	conv, err := bech32.ConvertBits(append([]byte{header}, p.stakeHash...), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, conv)
}

// SetAddress fills the payment credential and stake address of u from full
// address text.
func (u *ChainUtxo) SetAddress(addr string) error {
	parts, err := splitAddress(addr)
	if err != nil {
		return err
	}
	stake, err := parts.stakeAddress()
	if err != nil {
		return fmt.Errorf("failed to encode stake address: %w", err)
	}
	u.PaymentCred = PaymentCredential{
		Hash:   hex.EncodeToString(parts.paymentHash),
		Bech32: addr,
	}
	u.StakeAddress = stake
	return nil
}

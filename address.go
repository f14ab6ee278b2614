package txsim

import (
	"fmt"
)

const (
	AddressHeaderTypeMask    = 0xF0
	AddressHeaderNetworkMask = 0x0F
	AddressHashSize          = 28
)

// Shelley address types (high nibble of the header byte)
const (
	addressTypeKeyKey       = 0b0000
	addressTypeScriptKey    = 0b0001
	addressTypeKeyScript    = 0b0010
	addressTypeScriptScript = 0b0011
	addressTypeKeyNone      = 0b0110
	addressTypeScriptNone   = 0b0111
	addressTypeNoneKey      = 0b1110
	addressTypeNoneScript   = 0b1111
)

type NetworkID uint8

const (
	Testnet NetworkID = 0
	Mainnet NetworkID = 1
)

func (n NetworkID) String() string {
	switch n {
	case Testnet:
		return "testnet"
	case Mainnet:
		return "mainnet"
	}
	return fmt.Sprintf("network(%d)", uint8(n))
}

// CredentialKind says whether a payment credential is a key hash or a script
// hash.
type CredentialKind uint8

const (
	CredentialKey CredentialKind = iota
	CredentialScript
)

// StakeKind is the kind of the optional stake credential.
type StakeKind uint8

const (
	StakeNone StakeKind = iota
	StakeKey
	StakeScript
)

var addressTypes = map[CredentialKind]map[StakeKind]uint8{
	CredentialKey: {
		StakeNone:   addressTypeKeyNone,
		StakeKey:    addressTypeKeyKey,
		StakeScript: addressTypeKeyScript,
	},
	CredentialScript: {
		StakeNone:   addressTypeScriptNone,
		StakeKey:    addressTypeScriptKey,
		StakeScript: addressTypeScriptScript,
	},
}

// AddressHeader derives the header byte for the given credential kinds and
// network. Mainnet headers are the testnet value plus one.
func AddressHeader(payment CredentialKind, stake StakeKind, network NetworkID) (byte, error) {
	addrType, ok := addressTypes[payment][stake]
	if !ok {
		return 0, fmt.Errorf("unsupported credential combination: payment=%d stake=%d", payment, stake)
	}
	if network != Testnet && network != Mainnet {
		return 0, fmt.Errorf("invalid network ID: %d", network)
	}
	return addrType<<4 | uint8(network)&AddressHeaderNetworkMask, nil
}

// BuildAddress assembles raw address bytes: header, payment hash and, unless
// stake is StakeNone, the stake hash.
func BuildAddress(
	payment CredentialKind,
	paymentHash []byte,
	stake StakeKind,
	stakeHash []byte,
	network NetworkID,
) ([]byte, error) {
	header, err := AddressHeader(payment, stake, network)
	if err != nil {
		return nil, err
	}
	if len(paymentHash) != AddressHashSize {
		return nil, &FormatError{Msg: fmt.Sprintf("invalid payment hash length: %d", len(paymentHash))}
	}
	size := 1 + AddressHashSize
	if stake != StakeNone {
		if len(stakeHash) != AddressHashSize {
			return nil, &FormatError{Msg: fmt.Sprintf("invalid stake hash length: %d", len(stakeHash))}
		}
		size += AddressHashSize
	}
	addr := make([]byte, 0, size)
	addr = append(addr, header)
	addr = append(addr, paymentHash...)
	if stake != StakeNone {
		addr = append(addr, stakeHash...)
	}
	return addr, nil
}

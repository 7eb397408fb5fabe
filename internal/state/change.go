package state

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChangeKind classifies what part of an account a state change touches.
type ChangeKind string

const (
	KindStorage ChangeKind = "storage"
	KindBalance ChangeKind = "balance"
	KindNonce   ChangeKind = "nonce"
	KindCode    ChangeKind = "code"
)

// RawChange is one state-change record as emitted by the simulation tool.
// Values arrive as hex strings of arbitrary case and width; balance and nonce
// values may also be plain decimal. The slot field carries either a storage
// key or one of the sentinel markers "balance", "nonce", "code".
type RawChange struct {
	ContractAddress string `json:"contractAddress"`
	Slot            string `json:"slot"`
	Kind            string `json:"kind,omitempty"`
	BeforeValue     string `json:"beforeValue"`
	AfterValue      string `json:"afterValue"`
}

// Change is the canonical form of a RawChange: lower-case 20-byte address,
// kind marker, and 32-byte left-padded words for slot and values. Numeric
// kinds are parsed through uint256 so "0x01", "0x0...01" and decimal 1 all
// canonicalize to the same word.
type Change struct {
	ContractAddress common.Address `json:"contractAddress"`
	Kind            ChangeKind     `json:"kind"`
	Slot            common.Hash    `json:"slot"`
	BeforeValue     common.Hash    `json:"beforeValue"`
	AfterValue      common.Hash    `json:"afterValue"`
}

// MalformedDiffError reports a record the normalizer could not canonicalize.
// A corrupt simulation output cannot be partially trusted, so one malformed
// record fails the whole run.
type MalformedDiffError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (e *MalformedDiffError) Error() string {
	return fmt.Sprintf("malformed state diff record %d: field %q value %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *MalformedDiffError) Unwrap() error {
	return e.Err
}

// Normalize canonicalizes every raw record. It keeps records for every
// address so that downstream unexpected-change detection can see them.
func Normalize(raw []RawChange) ([]Change, error) {
	return normalize(raw, nil)
}

// NormalizeScoped canonicalizes like Normalize but drops records whose
// address is not in tracked. Used for review steps that only care about
// specific contracts.
func NormalizeScoped(raw []RawChange, tracked map[common.Address]bool) ([]Change, error) {
	if tracked == nil {
		tracked = map[common.Address]bool{}
	}
	return normalize(raw, tracked)
}

func normalize(raw []RawChange, tracked map[common.Address]bool) ([]Change, error) {
	changes := make([]Change, 0, len(raw))

	for i, record := range raw {
		addr, err := ParseAddress(record.ContractAddress)
		if err != nil {
			return nil, &MalformedDiffError{Index: i, Field: "contractAddress", Value: record.ContractAddress, Err: err}
		}

		kind, slot, err := parseSlot(record.Kind, record.Slot)
		if err != nil {
			return nil, &MalformedDiffError{Index: i, Field: "slot", Value: record.Slot, Err: err}
		}

		before, err := ParseWord(record.BeforeValue, kind.Numeric())
		if err != nil {
			return nil, &MalformedDiffError{Index: i, Field: "beforeValue", Value: record.BeforeValue, Err: err}
		}

		after, err := ParseWord(record.AfterValue, kind.Numeric())
		if err != nil {
			return nil, &MalformedDiffError{Index: i, Field: "afterValue", Value: record.AfterValue, Err: err}
		}

		if tracked != nil && !tracked[addr] {
			continue
		}

		changes = append(changes, Change{
			ContractAddress: addr,
			Kind:            kind,
			Slot:            slot,
			BeforeValue:     before,
			AfterValue:      after,
		})
	}

	return changes, nil
}

// Numeric reports whether values of this kind carry unsigned-integer
// semantics and may appear in decimal form.
func (k ChangeKind) Numeric() bool {
	return k == KindBalance || k == KindNonce
}

func parseKind(s string) (ChangeKind, error) {
	switch ChangeKind(strings.ToLower(s)) {
	case KindStorage:
		return KindStorage, nil
	case KindBalance:
		return KindBalance, nil
	case KindNonce:
		return KindNonce, nil
	case KindCode:
		return KindCode, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// parseSlot resolves the kind marker and storage key for a record. The slot
// field doubles as the kind sentinel for non-storage changes; an explicit
// kind field wins when both are present.
func parseSlot(kindField, slotField string) (ChangeKind, common.Hash, error) {
	if kindField != "" {
		kind, err := parseKind(kindField)
		if err != nil {
			return "", common.Hash{}, err
		}
		if kind != KindStorage {
			return kind, common.Hash{}, nil
		}
		slot, err := ParseWord(slotField, false)
		if err != nil {
			return "", common.Hash{}, err
		}
		return KindStorage, slot, nil
	}

	switch ChangeKind(strings.ToLower(slotField)) {
	case KindBalance, KindNonce, KindCode:
		return ChangeKind(strings.ToLower(slotField)), common.Hash{}, nil
	}

	slot, err := ParseWord(slotField, false)
	if err != nil {
		return "", common.Hash{}, err
	}
	return KindStorage, slot, nil
}

// ParseAddress canonicalizes a strict 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return common.Address{}, fmt.Errorf("address %q missing 0x prefix", s)
	}
	digits := trimmed[2:]
	if len(digits) != common.AddressLength*2 {
		return common.Address{}, fmt.Errorf("address %q is not 20 bytes", s)
	}
	if !isHex(digits) {
		return common.Address{}, fmt.Errorf("address %q contains non-hex characters", s)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseWord canonicalizes a 32-byte word. Hex input may use either case and
// any width up to 32 bytes, including odd nibble counts; it is left-padded.
// When numeric is set, bare decimal digits are accepted as well.
func ParseWord(s string, numeric bool) (common.Hash, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return common.Hash{}, fmt.Errorf("empty word")
	}

	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		digits := trimmed[2:]
		if len(digits) == 0 || len(digits) > common.HashLength*2 {
			return common.Hash{}, fmt.Errorf("hex word %q is not 1-32 bytes", s)
		}
		if !isHex(digits) {
			return common.Hash{}, fmt.Errorf("hex word %q contains non-hex characters", s)
		}
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		return common.HexToHash(digits), nil
	}

	if !numeric {
		return common.Hash{}, fmt.Errorf("word %q missing 0x prefix", s)
	}

	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("decimal value %q: %w", s, err)
	}
	return value.Bytes32(), nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

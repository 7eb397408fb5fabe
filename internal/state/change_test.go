package state

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalizesRecords(t *testing.T) {
	raw := []RawChange{
		{
			ContractAddress: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			Slot:            "0x1",
			BeforeValue:     "0x0",
			AfterValue:      "0x05",
		},
	}

	changes, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	change := changes[0]
	assert.Equal(t, common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), change.ContractAddress)
	assert.Equal(t, KindStorage, change.Kind)
	assert.Equal(t, common.HexToHash("0x1"), change.Slot)
	assert.Equal(t, common.HexToHash("0x5"), change.AfterValue)
}

func TestNormalizeEqualityUnderCaseAndPadding(t *testing.T) {
	variants := []string{"0x01", "0x1", "0x0000000000000000000000000000000000000000000000000000000000000001", "0x01", "0X1"}

	for _, v := range variants {
		word, err := ParseWord(v, false)
		require.NoError(t, err, v)
		assert.Equal(t, common.HexToHash("0x1"), word, v)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := []RawChange{
		{
			ContractAddress: "0xBBbbBBbbbBBBbbbbBBbBbbbbBBbBBbbbBbBBbBbB",
			Slot:            "balance",
			BeforeValue:     "1000000",
			AfterValue:      "0xF4240",
		},
	}

	once, err := Normalize(raw)
	require.NoError(t, err)

	// Feed the canonical output back through the normalizer.
	again, err := Normalize([]RawChange{{
		ContractAddress: once[0].ContractAddress.Hex(),
		Slot:            string(once[0].Kind),
		BeforeValue:     once[0].BeforeValue.Hex(),
		AfterValue:      once[0].AfterValue.Hex(),
	}})
	require.NoError(t, err)
	assert.Equal(t, once, again)
}

func TestNormalizeDecimalAndHexBalanceAgree(t *testing.T) {
	raw := []RawChange{
		{ContractAddress: "0xcccccccccccccccccccccccccccccccccccccccc", Slot: "balance", BeforeValue: "1", AfterValue: "255"},
		{ContractAddress: "0xcccccccccccccccccccccccccccccccccccccccc", Slot: "balance", BeforeValue: "0x01", AfterValue: "0xff"},
	}

	changes, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, changes[0].BeforeValue, changes[1].BeforeValue)
	assert.Equal(t, changes[0].AfterValue, changes[1].AfterValue)
	assert.Equal(t, KindBalance, changes[0].Kind)
}

func TestNormalizeSentinelSlots(t *testing.T) {
	tests := []struct {
		slot string
		kind ChangeKind
	}{
		{"balance", KindBalance},
		{"nonce", KindNonce},
		{"code", KindCode},
		{"0x05", KindStorage},
	}

	for _, tc := range tests {
		changes, err := Normalize([]RawChange{{
			ContractAddress: "0xdddddddddddddddddddddddddddddddddddddddd",
			Slot:            tc.slot,
			BeforeValue:     "0x0",
			AfterValue:      "0x1",
		}})
		require.NoError(t, err, tc.slot)
		assert.Equal(t, tc.kind, changes[0].Kind, tc.slot)
	}
}

func TestNormalizeRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name  string
		raw   RawChange
		field string
	}{
		{
			name:  "address without prefix",
			raw:   RawChange{ContractAddress: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x1"},
			field: "contractAddress",
		},
		{
			name:  "address too short",
			raw:   RawChange{ContractAddress: "0xaaaa", Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x1"},
			field: "contractAddress",
		},
		{
			name:  "slot not hex",
			raw:   RawChange{ContractAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Slot: "0xzz", BeforeValue: "0x0", AfterValue: "0x1"},
			field: "slot",
		},
		{
			name:  "value too wide",
			raw:   RawChange{ContractAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x" + strings.Repeat("0", 64) + "ff"},
			field: "afterValue",
		},
		{
			name:  "decimal storage value",
			raw:   RawChange{ContractAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Slot: "0x1", BeforeValue: "0x0", AfterValue: "12"},
			field: "afterValue",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize([]RawChange{tc.raw})
			require.Error(t, err)

			var malformed *MalformedDiffError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, 0, malformed.Index)
			assert.Equal(t, tc.field, malformed.Field)
		})
	}
}

func TestNormalizeScopedDropsUntrackedAddresses(t *testing.T) {
	tracked := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	raw := []RawChange{
		{ContractAddress: tracked.Hex(), Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x1"},
		{ContractAddress: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x1"},
	}

	scoped, err := NormalizeScoped(raw, map[common.Address]bool{tracked: true})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, tracked, scoped[0].ContractAddress)

	// Default mode keeps everything.
	all, err := Normalize(raw)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNormalizeScopedStillRejectsMalformedUntrackedRecords(t *testing.T) {
	raw := []RawChange{
		{ContractAddress: "not-an-address", Slot: "0x1", BeforeValue: "0x0", AfterValue: "0x1"},
	}

	_, err := NormalizeScoped(raw, map[common.Address]bool{})
	require.Error(t, err)
}

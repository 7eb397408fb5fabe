package task

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/base/task-signing-tool/internal/state"
	"github.com/base/task-signing-tool/internal/steps"
)

const validDocument = `{
	"ledgerId": 3,
	"chainId": "8453",
	"disabledSteps": ["balanceChanges"],
	"expectedChanges": [
		{
			"contractAddress": "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa",
			"slot": "0x01",
			"afterValue": "0x05",
			"stepId": "taskOrigin",
			"description": "implementation pointer"
		},
		{
			"contractAddress": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			"slot": "nonce",
			"beforeValue": "4",
			"afterValue": "5",
			"stepId": "signerAccounts",
			"optional": true
		}
	]
}`

func TestParseValidDocument(t *testing.T) {
	spec, err := Parse([]byte(validDocument))
	require.NoError(t, err)

	assert.Equal(t, 3, spec.LedgerID)
	assert.Equal(t, "8453", spec.ChainID)
	assert.True(t, spec.StepDisabled(steps.BalanceChanges))
	assert.False(t, spec.StepDisabled(steps.TaskOrigin))
	require.Len(t, spec.ExpectedChanges, 2)

	first := spec.ExpectedChanges[0]
	assert.Equal(t, common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), first.ContractAddress)
	assert.Equal(t, state.KindStorage, first.Kind)
	assert.Equal(t, common.HexToHash("0x1"), first.Slot)
	require.NotNil(t, first.AfterValue)
	assert.Equal(t, common.HexToHash("0x5"), *first.AfterValue)
	assert.Nil(t, first.BeforeValue)
	assert.Equal(t, steps.TaskOrigin, first.Step)
	assert.False(t, first.Optional)
	assert.Equal(t, "implementation pointer", first.Description)

	second := spec.ExpectedChanges[1]
	assert.Equal(t, state.KindNonce, second.Kind)
	require.NotNil(t, second.BeforeValue)
	assert.Equal(t, common.HexToHash("0x4"), *second.BeforeValue)
	assert.True(t, second.Optional)
}

func TestParseUnknownFieldsIgnored(t *testing.T) {
	doc := `{
		"ledgerId": 0,
		"futureKnob": {"x": 1},
		"expectedChanges": [
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x1", "stepId": "taskOrigin", "extra": true}
		]
	}`

	spec, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, spec.ExpectedChanges, 1)
}

func TestParseMissingLedgerIDDefaultsToZero(t *testing.T) {
	spec, err := Parse([]byte(`{"expectedChanges": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0, spec.LedgerID)
	assert.Empty(t, spec.ExpectedChanges)
}

func TestParseEnumeratesEveryViolation(t *testing.T) {
	doc := `{
		"ledgerId": -1,
		"disabledSteps": ["notAStep"],
		"expectedChanges": [
			{"contractAddress": "0x1234", "slot": "0xzz", "stepId": "taskOrigin"},
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x1", "stepId": "bogus", "afterValue": 12}
		]
	}`

	_, err := Parse([]byte(doc))
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)

	paths := map[string]bool{}
	for _, violation := range merr.Errors {
		var v *Violation
		require.ErrorAs(t, violation, &v)
		paths[v.Path] = true
	}

	assert.True(t, paths["ledgerId"])
	assert.True(t, paths["disabledSteps[0]"])
	assert.True(t, paths["expectedChanges[0].contractAddress"])
	assert.True(t, paths["expectedChanges[0].slot"])
	assert.True(t, paths["expectedChanges[1].stepId"])
	assert.True(t, paths["expectedChanges[1].afterValue"])
}

func TestParseRejectsDuplicateEntries(t *testing.T) {
	doc := `{
		"expectedChanges": [
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x01", "stepId": "taskOrigin"},
			{"contractAddress": "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "slot": "0x1", "stepId": "taskOrigin"}
		]
	}`

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate entry")
}

func TestParseAllowsSameSlotAcrossSteps(t *testing.T) {
	doc := `{
		"expectedChanges": [
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x01", "stepId": "taskOrigin"},
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x01", "stepId": "nestedCalls"}
		]
	}`

	spec, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, spec.ExpectedChanges, 2)
}

func TestParseMalformedHexNeverCoercedToZero(t *testing.T) {
	doc := `{
		"expectedChanges": [
			{"contractAddress": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "slot": "0x1", "afterValue": "0xnope", "stepId": "taskOrigin"}
		]
	}`

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expectedChanges[0].afterValue")
}

func TestParseIsDeterministic(t *testing.T) {
	first, err := Parse([]byte(validDocument))
	require.NoError(t, err)
	second, err := Parse([]byte(validDocument))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLedgerIDBestEffort(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"valid document", validDocument, 3},
		{"ledger id only", `{"ledgerId": 7}`, 7},
		{"invalid json", `{"ledgerId": 7`, 0},
		{"wrong type", `{"ledgerId": "seven"}`, 0},
		{"absent", `{}`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LedgerID([]byte(tc.doc)))
		})
	}
}

func TestTrackedAddresses(t *testing.T) {
	spec, err := Parse([]byte(validDocument))
	require.NoError(t, err)

	tracked := spec.TrackedAddresses()
	assert.Len(t, tracked, 2)
	assert.True(t, tracked[common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")])
	assert.True(t, tracked[common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")])
}

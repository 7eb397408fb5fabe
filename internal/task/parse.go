package task

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"

	"github.com/base/task-signing-tool/internal/state"
	"github.com/base/task-signing-tool/internal/steps"
)

// Violation is one structural problem found in an expected-state document,
// tagged with the path of the offending field.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// document mirrors the wire shape of an expected-state document. Scalars are
// decoded loosely so that a wrong-typed field becomes one violation in the
// full list instead of aborting the decode. Unknown fields are ignored.
type document struct {
	LedgerID        any               `json:"ledgerId"`
	ChainID         any               `json:"chainId"`
	ExpectedChanges []json.RawMessage `json:"expectedChanges"`
	DisabledSteps   []any             `json:"disabledSteps"`
}

type entry struct {
	ContractAddress any `json:"contractAddress"`
	Slot            any `json:"slot"`
	BeforeValue     any `json:"beforeValue"`
	AfterValue      any `json:"afterValue"`
	StepID          any `json:"stepId"`
	Optional        any `json:"optional"`
	Description     any `json:"description"`
}

// Parse turns an expected-state document into an immutable Spec. On failure
// it returns a *multierror.Error holding every *Violation found, each tagged
// with a field path; callers must not reconcile against a document that
// failed to parse.
func Parse(doc []byte) (*Spec, error) {
	var parsed document
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, multierror.Append(nil, &Violation{Path: "$", Reason: fmt.Sprintf("invalid JSON: %v", err)})
	}

	var merr *multierror.Error
	spec := &Spec{DisabledSteps: map[steps.Step]bool{}}

	spec.LedgerID = parseLedgerID(parsed.LedgerID, &merr)
	spec.ChainID = parseOptionalString(parsed.ChainID, "chainId", &merr)

	for i, step := range parsed.DisabledSteps {
		path := fmt.Sprintf("disabledSteps[%d]", i)
		id, ok := step.(string)
		if !ok {
			merr = multierror.Append(merr, &Violation{Path: path, Reason: "must be a step id string"})
			continue
		}
		parsedStep, err := steps.Parse(id)
		if err != nil {
			merr = multierror.Append(merr, &Violation{Path: path, Reason: err.Error()})
			continue
		}
		spec.DisabledSteps[parsedStep] = true
	}

	seen := map[changeKey]bool{}
	for i, raw := range parsed.ExpectedChanges {
		path := fmt.Sprintf("expectedChanges[%d]", i)

		var decoded entry
		if err := json.Unmarshal(raw, &decoded); err != nil {
			merr = multierror.Append(merr, &Violation{Path: path, Reason: "must be an expected-change object"})
			continue
		}

		change, ok := parseEntry(decoded, path, &merr)
		if !ok {
			continue
		}

		key := changeKey{change.Step, change.ContractAddress, change.Kind, change.Slot}
		if seen[key] {
			merr = multierror.Append(merr, &Violation{
				Path:   path,
				Reason: fmt.Sprintf("duplicate entry for %s slot %s in step %s", change.ContractAddress, change.Slot, change.Step),
			})
			continue
		}
		seen[key] = true

		spec.ExpectedChanges = append(spec.ExpectedChanges, change)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return spec, nil
}

// LedgerID extracts just the ledger account index from a document, returning
// the default index 0 when the document cannot be fully parsed. This is a
// best-effort read for listing task configs; full validation must go through
// Parse, which surfaces the errors this helper swallows.
func LedgerID(doc []byte) int {
	var parsed struct {
		LedgerID any `json:"ledgerId"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return 0
	}

	var merr *multierror.Error
	id := parseLedgerID(parsed.LedgerID, &merr)
	if merr.ErrorOrNil() != nil {
		return 0
	}
	return id
}

type changeKey struct {
	step steps.Step
	addr common.Address
	kind state.ChangeKind
	slot common.Hash
}

func parseLedgerID(raw any, merr **multierror.Error) int {
	if raw == nil {
		// Absent ledger id is the one documented lenient default.
		return 0
	}

	number, ok := raw.(float64)
	if !ok {
		*merr = multierror.Append(*merr, &Violation{Path: "ledgerId", Reason: "must be a non-negative integer"})
		return 0
	}
	if number < 0 || number != math.Trunc(number) {
		*merr = multierror.Append(*merr, &Violation{Path: "ledgerId", Reason: "must be a non-negative integer"})
		return 0
	}
	return int(number)
}

func parseOptionalString(raw any, path string, merr **multierror.Error) string {
	if raw == nil {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		*merr = multierror.Append(*merr, &Violation{Path: path, Reason: "must be a string"})
		return ""
	}
	return value
}

func parseEntry(raw entry, path string, merr **multierror.Error) (ExpectedChange, bool) {
	valid := true
	var change ExpectedChange

	addrField, ok := raw.ContractAddress.(string)
	if !ok {
		*merr = multierror.Append(*merr, &Violation{Path: path + ".contractAddress", Reason: "required 0x-prefixed address string"})
		valid = false
	} else if addr, err := state.ParseAddress(addrField); err != nil {
		*merr = multierror.Append(*merr, &Violation{Path: path + ".contractAddress", Reason: err.Error()})
		valid = false
	} else {
		change.ContractAddress = addr
	}

	change.Kind = state.KindStorage
	if raw.Slot != nil {
		slotField, ok := raw.Slot.(string)
		if !ok {
			*merr = multierror.Append(*merr, &Violation{Path: path + ".slot", Reason: "must be a hex word or balance/nonce/code"})
			valid = false
		} else {
			kind, slot, err := parseEntrySlot(slotField)
			if err != nil {
				*merr = multierror.Append(*merr, &Violation{Path: path + ".slot", Reason: err.Error()})
				valid = false
			} else {
				change.Kind = kind
				change.Slot = slot
			}
		}
	}

	change.BeforeValue = parseOptionalWord(raw.BeforeValue, path+".beforeValue", change.Kind, merr, &valid)
	change.AfterValue = parseOptionalWord(raw.AfterValue, path+".afterValue", change.Kind, merr, &valid)

	stepField, ok := raw.StepID.(string)
	if !ok {
		*merr = multierror.Append(*merr, &Violation{Path: path + ".stepId", Reason: "required step id string"})
		valid = false
	} else if step, err := steps.Parse(stepField); err != nil {
		*merr = multierror.Append(*merr, &Violation{Path: path + ".stepId", Reason: err.Error()})
		valid = false
	} else {
		change.Step = step
	}

	if raw.Optional != nil {
		optional, ok := raw.Optional.(bool)
		if !ok {
			*merr = multierror.Append(*merr, &Violation{Path: path + ".optional", Reason: "must be a boolean"})
			valid = false
		} else {
			change.Optional = optional
		}
	}

	if raw.Description != nil {
		description, ok := raw.Description.(string)
		if !ok {
			*merr = multierror.Append(*merr, &Violation{Path: path + ".description", Reason: "must be a string"})
			valid = false
		} else {
			change.Description = description
		}
	}

	return change, valid
}

func parseEntrySlot(slotField string) (state.ChangeKind, common.Hash, error) {
	switch state.ChangeKind(slotField) {
	case state.KindBalance:
		return state.KindBalance, common.Hash{}, nil
	case state.KindNonce:
		return state.KindNonce, common.Hash{}, nil
	case state.KindCode:
		return state.KindCode, common.Hash{}, nil
	}

	slot, err := state.ParseWord(slotField, false)
	if err != nil {
		return "", common.Hash{}, err
	}
	return state.KindStorage, slot, nil
}

func parseOptionalWord(raw any, path string, kind state.ChangeKind, merr **multierror.Error, valid *bool) *common.Hash {
	if raw == nil {
		return nil
	}

	var text string
	switch value := raw.(type) {
	case string:
		text = value
	case float64:
		// Numeric-semantic fields may arrive as JSON numbers.
		if !kind.Numeric() || value < 0 || value != math.Trunc(value) {
			*merr = multierror.Append(*merr, &Violation{Path: path, Reason: "must be a hex word string"})
			*valid = false
			return nil
		}
		text = fmt.Sprintf("%.0f", value)
	default:
		*merr = multierror.Append(*merr, &Violation{Path: path, Reason: "must be a hex word string"})
		*valid = false
		return nil
	}

	word, err := state.ParseWord(text, kind.Numeric())
	if err != nil {
		*merr = multierror.Append(*merr, &Violation{Path: path, Reason: err.Error()})
		*valid = false
		return nil
	}
	return &word
}

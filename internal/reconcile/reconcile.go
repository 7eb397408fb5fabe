// Package reconcile matches the expected state changes declared by a task
// against the state diff an external simulation actually produced.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/base/task-signing-tool/internal/state"
	"github.com/base/task-signing-tool/internal/steps"
	"github.com/base/task-signing-tool/internal/task"
)

// Status is the outcome of comparing one expectation against the diff.
type Status string

const (
	// StatusPassed means the actual change matched every declared field, or
	// an optional expectation was absent from the diff.
	StatusPassed Status = "passed"
	// StatusFailed means an actual change existed but a declared value
	// differed.
	StatusFailed Status = "failed"
	// StatusMissing means a required expectation had no actual change.
	StatusMissing Status = "missing"
	// StatusUnexpected means the diff touched a tracked contract in a way no
	// expectation declared.
	StatusUnexpected Status = "unexpected"
)

// Item is the reconciliation verdict for one expected change, or for one
// undeclared actual change at a tracked address. Disabled items keep their
// raw status; disabling only affects blocking computation downstream.
type Item struct {
	Status      Status               `json:"status"`
	Step        steps.Step           `json:"stepId"`
	Disabled    bool                 `json:"isDisabled"`
	Expected    *task.ExpectedChange `json:"expected,omitempty"`
	Actual      *state.Change        `json:"actual,omitempty"`
	Description string               `json:"description"`
	AllPassed   bool                 `json:"allPassed"`
}

type lookupKey struct {
	addr common.Address
	kind state.ChangeKind
	slot common.Hash
}

type netChange struct {
	change   state.Change
	order    int
	consumed bool
}

// Run reconciles a parsed task spec against a normalized state diff. Output
// order is declaration order for expected entries, then diff-encounter order
// for unexpected ones; given identical inputs the output is identical.
func Run(spec *task.Spec, actual []state.Change) []Item {
	lookup := buildLookup(actual)
	items := make([]Item, 0, len(spec.ExpectedChanges))

	for i := range spec.ExpectedChanges {
		expected := &spec.ExpectedChanges[i]
		key := lookupKey{expected.ContractAddress, expected.Kind, expected.Slot}

		item := Item{
			Step:        expected.Step,
			Disabled:    spec.StepDisabled(expected.Step),
			Expected:    expected,
			Description: expected.Description,
		}

		net, ok := lookup[key]
		if !ok {
			item.Status = StatusMissing
			if expected.Optional {
				// Nothing changed, which the entry explicitly allows.
				item.Status = StatusPassed
			}
		} else {
			net.consumed = true
			change := net.change
			item.Actual = &change
			item.Status = compare(expected, &change)
		}

		item.AllPassed = item.Status == StatusPassed
		items = append(items, item)
	}

	items = append(items, unexpectedItems(spec, lookup)...)
	return items
}

// buildLookup indexes the diff by (address, kind, slot). Duplicate keys are
// merged into a net effect: first-seen before value, last-seen after value.
func buildLookup(actual []state.Change) map[lookupKey]*netChange {
	lookup := make(map[lookupKey]*netChange, len(actual))

	for i, change := range actual {
		key := lookupKey{change.ContractAddress, change.Kind, change.Slot}
		if existing, ok := lookup[key]; ok {
			existing.change.AfterValue = change.AfterValue
			continue
		}
		lookup[key] = &netChange{change: change, order: i}
	}

	return lookup
}

func compare(expected *task.ExpectedChange, actual *state.Change) Status {
	// Both sides are canonical 32-byte words, so equality here is already
	// case- and padding-insensitive.
	if expected.AfterValue != nil && *expected.AfterValue != actual.AfterValue {
		return StatusFailed
	}
	if expected.BeforeValue != nil && *expected.BeforeValue != actual.BeforeValue {
		return StatusFailed
	}
	return StatusPassed
}

// unexpectedItems emits one item per unconsumed diff entry at a tracked
// address. Untracked addresses are ignored. Undeclared writes typically come
// from calls nested under the reviewed transaction, so they are routed to
// the nested-calls step.
func unexpectedItems(spec *task.Spec, lookup map[lookupKey]*netChange) []Item {
	tracked := spec.TrackedAddresses()

	remainder := make([]*netChange, 0, len(lookup))
	for _, net := range lookup {
		if net.consumed || !tracked[net.change.ContractAddress] {
			continue
		}
		remainder = append(remainder, net)
	}

	// Map iteration order is random; restore diff-encounter order.
	sort.Slice(remainder, func(i, j int) bool {
		return remainder[i].order < remainder[j].order
	})

	items := make([]Item, 0, len(remainder))
	for _, net := range remainder {
		change := net.change
		items = append(items, Item{
			Status:      StatusUnexpected,
			Step:        steps.NestedCalls,
			Disabled:    spec.StepDisabled(steps.NestedCalls),
			Actual:      &change,
			Description: describeUnexpected(&change),
		})
	}
	return items
}

func describeUnexpected(change *state.Change) string {
	if change.Kind == state.KindStorage {
		return fmt.Sprintf("undeclared storage change at %s slot %s", change.ContractAddress, change.Slot)
	}
	return fmt.Sprintf("undeclared %s change at %s", change.Kind, change.ContractAddress)
}

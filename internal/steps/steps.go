package steps

import "fmt"

// Step identifies one logical review step in the signing workflow. The set is
// closed and this file is the single declaration site: the reconciliation
// engine, the report aggregator and the task config parser all key off it.
type Step string

const (
	// TaskOrigin covers changes on the contract the task directly targets.
	TaskOrigin Step = "taskOrigin"
	// NestedCalls covers changes produced by calls nested under the reviewed
	// transaction. Changes nobody declared are routed here as well.
	NestedCalls Step = "nestedCalls"
	// SignerAccounts covers changes on the signing accounts themselves, such
	// as Safe nonce increments and approved-hash writes.
	SignerAccounts Step = "signerAccounts"
	// BalanceChanges covers ETH balance movements.
	BalanceChanges Step = "balanceChanges"
	// CodeChanges covers contract code (hash) changes.
	CodeChanges Step = "codeChanges"
)

// canonical fixes the order in which steps are reviewed and navigated.
var canonical = []Step{TaskOrigin, NestedCalls, SignerAccounts, BalanceChanges, CodeChanges}

var labels = map[Step]string{
	TaskOrigin:     "Task Origin",
	NestedCalls:    "Nested Calls",
	SignerAccounts: "Signer Accounts",
	BalanceChanges: "Balance Changes",
	CodeChanges:    "Code Changes",
}

// Canonical returns every review step in fixed review order. Callers get a
// fresh slice so the canonical order cannot be mutated.
func Canonical() []Step {
	out := make([]Step, len(canonical))
	copy(out, canonical)
	return out
}

// Parse validates a step id read from a task document.
func Parse(s string) (Step, error) {
	step := Step(s)
	if !step.Valid() {
		return "", fmt.Errorf("unknown step id %q", s)
	}
	return step, nil
}

// Valid reports whether s is a member of the closed step set.
func (s Step) Valid() bool {
	_, ok := labels[s]
	return ok
}

// Label returns the human-readable name shown in review navigation.
func (s Step) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

package task

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/base/task-signing-tool/internal/state"
	"github.com/base/task-signing-tool/internal/steps"
)

// ExpectedChange is one declared expectation: a state change the upgrade
// transaction is supposed to produce. Nil BeforeValue means "don't check the
// previous value"; nil AfterValue means "any resulting value".
type ExpectedChange struct {
	ContractAddress common.Address   `json:"contractAddress"`
	Kind            state.ChangeKind `json:"kind"`
	Slot            common.Hash      `json:"slot"`
	BeforeValue     *common.Hash     `json:"beforeValue,omitempty"`
	AfterValue      *common.Hash     `json:"afterValue,omitempty"`
	Step            steps.Step       `json:"stepId"`
	Optional        bool             `json:"optional,omitempty"`
	Description     string           `json:"description,omitempty"`
}

// Spec is a parsed expected-state document. It is created once per
// validation run and never mutated afterwards.
type Spec struct {
	// LedgerID is the hardware-wallet account index to sign with.
	LedgerID int
	// ChainID scopes registry lookups; empty when the document omits it.
	ChainID string
	// ExpectedChanges preserves the declaration order of the document.
	ExpectedChanges []ExpectedChange
	// DisabledSteps lists review steps that do not apply to this task.
	DisabledSteps map[steps.Step]bool
}

// TrackedAddresses returns every contract address referenced by at least one
// expected change. Changes at other addresses are outside the review scope.
func (s *Spec) TrackedAddresses() map[common.Address]bool {
	tracked := make(map[common.Address]bool, len(s.ExpectedChanges))
	for _, change := range s.ExpectedChanges {
		tracked[change.ContractAddress] = true
	}
	return tracked
}

// StepDisabled reports whether a step is declared inapplicable to this task.
func (s *Spec) StepDisabled(step steps.Step) bool {
	return s.DisabledSteps[step]
}

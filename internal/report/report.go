// Package report aggregates reconciliation verdicts into the step-grouped
// validation report reviewed before signing. Every function here is pure and
// never fails; an empty item list yields zero counts and no blocking errors.
package report

import (
	"github.com/base/task-signing-tool/internal/reconcile"
	"github.com/base/task-signing-tool/internal/steps"
)

// ItemsByStep buckets reconciliation items per review step. Every canonical
// step is present, empty steps included, with per-step order preserved from
// the reconciliation output.
type ItemsByStep map[steps.Step][]reconcile.Item

// Tally counts items in one bucket. Failed excludes disabled items; their
// raw status stays visible in the report but never counts against it.
type Tally struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Counts holds the per-step tallies plus the grand total.
type Counts struct {
	PerStep map[steps.Step]Tally `json:"perStep"`
	Overall Tally                `json:"overall"`
}

// NavEntry drives sequential step-by-step review in a presentation layer.
type NavEntry struct {
	Step        steps.Step `json:"stepId"`
	Label       string     `json:"label"`
	FailedCount int        `json:"failedCount"`
	Disabled    bool       `json:"isDisabled"`
}

// Report is the full validation report handed to the presentation layer and
// to the signing workflow, which is expected to refuse to sign while
// BlockingErrorsExist is true.
type Report struct {
	ItemsByStep         ItemsByStep `json:"itemsByStep"`
	NavList             []NavEntry  `json:"navList"`
	StepCounts          Counts      `json:"stepCounts"`
	BlockingErrorsExist bool        `json:"blockingErrorsExist"`
}

// Build assembles the full report from a flat reconciliation result.
func Build(items []reconcile.Item) *Report {
	byStep := GroupByStep(items)
	return &Report{
		ItemsByStep:         byStep,
		NavList:             BuildNavList(byStep),
		StepCounts:          StepCounts(byStep),
		BlockingErrorsExist: HasBlockingErrors(byStep),
	}
}

// GroupByStep partitions items into the canonical step buckets.
func GroupByStep(items []reconcile.Item) ItemsByStep {
	byStep := make(ItemsByStep, len(steps.Canonical()))
	for _, step := range steps.Canonical() {
		byStep[step] = []reconcile.Item{}
	}

	for _, item := range items {
		byStep[item.Step] = append(byStep[item.Step], item)
	}
	return byStep
}

// HasBlockingErrors reports whether any enabled item did not pass. A step
// made up entirely of disabled items never blocks signing.
func HasBlockingErrors(byStep ItemsByStep) bool {
	for _, items := range byStep {
		for _, item := range items {
			if !item.Disabled && item.Status != reconcile.StatusPassed {
				return true
			}
		}
	}
	return false
}

// StepCounts tallies every step plus the grand total.
func StepCounts(byStep ItemsByStep) Counts {
	counts := Counts{PerStep: make(map[steps.Step]Tally, len(byStep))}

	for step, items := range byStep {
		var tally Tally
		for _, item := range items {
			tally.Total++
			if item.Status == reconcile.StatusPassed {
				tally.Passed++
			} else if !item.Disabled {
				tally.Failed++
			}
		}
		counts.PerStep[step] = tally
		counts.Overall.Total += tally.Total
		counts.Overall.Passed += tally.Passed
		counts.Overall.Failed += tally.Failed
	}

	return counts
}

// BuildNavList returns exactly one entry per canonical step in fixed review
// order, however many items the step holds. A step is marked disabled only
// when it has items and every one of them is disabled; a mixed step stays
// navigable and its enabled items still count.
func BuildNavList(byStep ItemsByStep) []NavEntry {
	counts := StepCounts(byStep)

	nav := make([]NavEntry, 0, len(steps.Canonical()))
	for _, step := range steps.Canonical() {
		items := byStep[step]

		disabled := len(items) > 0
		for _, item := range items {
			if !item.Disabled {
				disabled = false
				break
			}
		}

		nav = append(nav, NavEntry{
			Step:        step,
			Label:       step.Label(),
			FailedCount: counts.PerStep[step].Failed,
			Disabled:    disabled,
		})
	}
	return nav
}

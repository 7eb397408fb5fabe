package report

import (
	"fmt"
	"strings"

	"github.com/base/task-signing-tool/config"
	"github.com/base/task-signing-tool/internal/reconcile"
	"github.com/base/task-signing-tool/internal/state"
)

// Annotate fills empty item descriptions from the contract/slot registry so
// a reviewer sees contract names instead of bare addresses. Descriptions
// declared in the task document are never overwritten.
func Annotate(r *Report, chainID string, reg *config.Registry) {
	if reg == nil {
		return
	}

	for step, items := range r.ItemsByStep {
		for i := range items {
			if items[i].Description != "" {
				continue
			}
			items[i].Description = describe(&items[i], chainID, reg)
		}
		r.ItemsByStep[step] = items
	}
}

func describe(item *reconcile.Item, chainID string, reg *config.Registry) string {
	change := item.Actual
	if change == nil && item.Expected != nil {
		contract := reg.Contract(chainID, item.Expected.ContractAddress.Hex())
		return contract.Name
	}
	if change == nil {
		return ""
	}

	contract := reg.Contract(chainID, change.ContractAddress.Hex())
	if change.Kind != state.KindStorage {
		return fmt.Sprintf("%s %s change", contract.Name, change.Kind)
	}

	slot := contract.Slot(change.Slot.Hex())
	return strings.TrimSpace(fmt.Sprintf("%s: %s", contract.Name, slot.Summary))
}

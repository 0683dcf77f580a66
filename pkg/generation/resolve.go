package generation

import (
	"strings"

	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
)

// ResolveEmployees maps loosely identified employees to roster ids. Known ids
// are kept; other values are matched case-insensitively against "First Last"
// and "Last First". Anything else is flagged Unresolved and passed through so
// it surfaces as a row error.
func ResolveEmployees(in []models.Assignment, roster []constraints.EmployeeConstraint) []models.Assignment {
	byID := make(map[string]bool, len(roster))
	byName := make(map[string]string, len(roster)*2)
	ambiguous := make(map[string]bool)

	addName := func(name, id string) {
		key := normalizeName(name)
		if key == "" {
			return
		}
		if prev, ok := byName[key]; ok && prev != id {
			ambiguous[key] = true
			return
		}
		byName[key] = id
	}
	for _, ec := range roster {
		e := ec.Employee
		byID[e.ID] = true
		addName(e.FirstName+" "+e.LastName, e.ID)
		addName(e.LastName+" "+e.FirstName, e.ID)
	}

	out := make([]models.Assignment, len(in))
	for i, a := range in {
		a.EmployeeID = strings.TrimSpace(a.EmployeeID)
		switch {
		case byID[a.EmployeeID]:
		case byName[normalizeName(a.EmployeeID)] != "" && !ambiguous[normalizeName(a.EmployeeID)]:
			a.EmployeeID = byName[normalizeName(a.EmployeeID)]
		default:
			a.Unresolved = true
		}
		out[i] = a
	}
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

package balance

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/ledger"
)

type key struct {
	material id.ID
	location id.ID
}

// Project replays movements into per-(material, location) balances, then
// filters and sorts them by material name and location name.
func Project(movements []ledger.Movement, locationNames map[id.ID]string, f Filter) ([]MaterialBalance, error) {
	var expr *Expression
	if strings.TrimSpace(f.Expression) != "" {
		compiled, err := CompileExpression(f.Expression)
		if err != nil {
			return nil, err
		}
		expr = compiled
	}

	acc := make(map[key]*MaterialBalance)
	for _, m := range movements {
		for _, eff := range m.Effects() {
			k := key{material: m.MaterialID, location: eff.LocationID}
			b, ok := acc[k]
			if !ok {
				b = &MaterialBalance{
					MaterialID:   m.MaterialID,
					MaterialName: m.MaterialName,
					LocationID:   eff.LocationID,
				}
				acc[k] = b
			}
			b.Quantity += eff.Delta
			if m.CreatedAt.After(b.LastMovementDate) {
				b.LastMovementDate = m.CreatedAt
				if m.MaterialName != "" {
					b.MaterialName = m.MaterialName
				}
			}
		}
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]MaterialBalance, 0, len(acc))
	for _, b := range acc {
		b.LocationName = UnknownLocation
		if name, ok := locationNames[b.LocationID]; ok {
			b.LocationName = name
		}

		if len(f.LocationIDs) > 0 && !slices.Contains(f.LocationIDs, b.LocationID) {
			continue
		}
		if len(f.MaterialIDs) > 0 && !slices.Contains(f.MaterialIDs, b.MaterialID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.MaterialName), search) &&
			!strings.Contains(strings.ToLower(b.LocationName), search) {
			continue
		}
		if !f.ShowZeroQuantity && b.Quantity <= 0 {
			continue
		}
		if expr != nil {
			keep, err := expr.Match(*b)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		out = append(out, *b)
	}

	sortBalances(out)
	return out, nil
}

// sortBalances orders by material name, then location name, using a
// case-insensitive collator. Ids break remaining ties.
func sortBalances(balances []MaterialBalance) {
	// Collators keep internal buffers, so one per call.
	c := collate.New(language.Und, collate.IgnoreCase)
	slices.SortFunc(balances, func(a, b MaterialBalance) int {
		if r := c.CompareString(a.MaterialName, b.MaterialName); r != 0 {
			return r
		}
		if r := c.CompareString(a.LocationName, b.LocationName); r != 0 {
			return r
		}
		if r := strings.Compare(a.MaterialID.String(), b.MaterialID.String()); r != 0 {
			return r
		}
		return strings.Compare(a.LocationID.String(), b.LocationID.String())
	})
}

package engine

import (
	"sort"

	"github.com/roach88/stratum/internal/feature"
	"github.com/roach88/stratum/internal/store"
)

// Layers is the externally visible feature structure of one unit:
// tier name -> feature name -> entry, where an entry is either a
// Confirmed value or a SuggestionSet.
type Layers map[string]map[string]any

// Confirmed is a layer entry asserted by an identified user.
type Confirmed struct {
	User  string `json:"user"`
	Date  string `json:"date"`
	Value any    `json:"value"`
}

// SuggestionSet aggregates competing unconfirmed values for one key.
// User is always null; it keeps the wire shape aligned with Confirmed.
type SuggestionSet struct {
	User    *string  `json:"user"`
	Date    string   `json:"date"`
	Choices []Choice `json:"choices"`
}

// Choice is one suggested value with its weight.
type Choice struct {
	Value       any      `json:"value"`
	Probability *float64 `json:"probability"`
}

// refResolver turns a confirmed reference value into its nested
// representation. It returns nil (no error) when the referenced unit
// does not resolve, in which case the whole entry is omitted: a null
// confirmed value would be indistinguishable from "no information".
type refResolver func(id int64) (any, error)

// buildLayers reconciles the active rows of one unit into its layers.
//
// A confirmed row wins its key outright. Suggestion rows only surface
// when no confirmed row exists for their key, aggregated into a
// SuggestionSet ordered by probability descending (ties keep scan
// order, absent probabilities sort last). In reduced mode suggestion
// sets are suppressed entirely.
func buildLayers(rows []store.FeatureRow, reduced bool, resolve refResolver) (Layers, error) {
	confirmed := make(map[feature.Key]store.FeatureRow)
	suggestions := make(map[feature.Key][]store.FeatureRow)
	var order []feature.Key

	for _, row := range rows {
		if _, seen := confirmed[row.Key]; !seen {
			if _, seen := suggestions[row.Key]; !seen {
				order = append(order, row.Key)
			}
		}
		if row.Confirmed() {
			confirmed[row.Key] = row
		} else {
			suggestions[row.Key] = append(suggestions[row.Key], row)
		}
	}

	layers := make(Layers)
	for _, key := range order {
		if row, ok := confirmed[key]; ok {
			value, err := renderConfirmed(row, resolve)
			if err != nil {
				return nil, err
			}
			if value == nil {
				continue // dangling reference: omit the entry
			}
			setEntry(layers, key, Confirmed{
				User:  *row.User,
				Date:  row.Date,
				Value: value,
			})
			continue
		}

		if reduced {
			continue
		}

		group := suggestions[key]
		choices := make([]Choice, len(group))
		for i, row := range group {
			choices[i] = Choice{
				Value:       RenderValue(row.Value),
				Probability: row.Probability,
			}
		}
		sort.SliceStable(choices, func(i, j int) bool {
			return probOf(choices[i]) > probOf(choices[j])
		})
		setEntry(layers, key, SuggestionSet{
			Date:    group[0].Date,
			Choices: choices,
		})
	}

	return layers, nil
}

// renderConfirmed renders a confirmed row's value per its kind.
// References resolve recursively; a nil result means "omit".
func renderConfirmed(row store.FeatureRow, resolve refResolver) (any, error) {
	if ref, ok := row.Value.(feature.Ref); ok {
		return resolve(int64(ref))
	}
	return RenderValue(row.Value), nil
}

// RenderValue renders a value as its plain JSON form, references as
// bare ids. Suggestion choices and list results use this directly.
func RenderValue(v feature.Value) any {
	switch val := v.(type) {
	case feature.Int:
		return int64(val)
	case feature.Bool:
		return bool(val)
	case feature.Str:
		return string(val)
	case feature.Ref:
		return int64(val)
	}
	return nil
}

func setEntry(layers Layers, key feature.Key, entry any) {
	tier := layers[key.Tier]
	if tier == nil {
		tier = make(map[string]any)
		layers[key.Tier] = tier
	}
	tier[key.Feature] = entry
}

func probOf(c Choice) float64 {
	if c.Probability == nil {
		return -1
	}
	return *c.Probability
}

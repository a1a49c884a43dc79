package detector

import (
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
)

// minSuggestionScore is the lowest token overlap that yields a suggestion.
const minSuggestionScore = 0.5

type suggestion struct {
	CategoryID   uuid.UUID
	CategoryName string
	Score        float64
	Votes        int
}

func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		out[f] = true
	}
	return out
}

// jaccard is |a∩b| / |a∪b| over token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// suggestCategory picks the category whose past transactions best match the
// description. Ties go to the category with more matching samples, then by name.
func suggestCategory(description string, samples []domain.CategorizedTransaction) (suggestion, bool) {
	tokens := tokenize(description)
	if len(tokens) == 0 {
		return suggestion{}, false
	}

	byCategory := make(map[uuid.UUID]*suggestion)
	for _, s := range samples {
		score := jaccard(tokens, tokenize(s.Description))
		if score < minSuggestionScore {
			continue
		}
		cur, ok := byCategory[s.CategoryID]
		if !ok {
			cur = &suggestion{CategoryID: s.CategoryID, CategoryName: s.CategoryName}
			byCategory[s.CategoryID] = cur
		}
		cur.Votes++
		if score > cur.Score {
			cur.Score = score
		}
	}
	if len(byCategory) == 0 {
		return suggestion{}, false
	}

	ranked := make([]suggestion, 0, len(byCategory))
	for _, s := range byCategory {
		ranked = append(ranked, *s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Votes != ranked[j].Votes {
			return ranked[i].Votes > ranked[j].Votes
		}
		return ranked[i].CategoryName < ranked[j].CategoryName
	})
	return ranked[0], true
}

package ranking

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/abelbrown/companion/internal/model"
)

// CravingResult is the answer to "I want something like X".
type CravingResult struct {
	Query       string                   `json:"query"`
	Matches     []model.EnrichedActivity `json:"matches"`
	Explanation string                   `json:"explanation"`
}

// synonyms expands common craving words into the labels itineraries use.
var synonyms = map[string][]string{
	"coffee":   {"cafe", "café", "coffee shop", "espresso"},
	"food":     {"restaurant", "bistro", "eat", "lunch", "dinner"},
	"hungry":   {"restaurant", "bistro", "cafe", "food", "market"},
	"eat":      {"restaurant", "bistro", "food"},
	"drink":    {"bar", "pub", "wine", "cocktail"},
	"beer":     {"bar", "pub", "brewery"},
	"wine":     {"bar", "wine", "vineyard"},
	"art":      {"museum", "gallery", "exhibition"},
	"history":  {"museum", "monument", "castle", "cathedral", "ruins"},
	"view":     {"viewpoint", "lookout", "tower", "panorama"},
	"nature":   {"park", "garden", "hike", "trail", "beach"},
	"outdoors": {"park", "garden", "hike", "trail", "viewpoint"},
	"shopping": {"market", "shop", "boutique", "mall"},
	"relax":    {"spa", "park", "beach", "garden"},
	"music":    {"concert", "jazz", "club", "opera"},
}

// expandQuery returns the query words plus their synonyms, lowercased.
func expandQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, w)
		terms = append(terms, synonyms[w]...)
	}
	return lo.Uniq(terms)
}

// words splits s into lowercase letter/digit runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// sameWord is true for equal words and simple plurals ("museums").
func sameWord(token, word string) bool {
	return token == word || token == word+"s" || token == word+"es"
}

// containsPhrase reports whether phrase appears in tokens as whole,
// consecutive words.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		ok := true
		for j, w := range phrase {
			if !sameWord(tokens[i+j], w) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matches(a *model.Activity, terms []string) bool {
	tokens := words(strings.Join(append([]string{a.Name, a.Category, a.Description}, a.Tags...), " "))
	return lo.SomeBy(terms, func(t string) bool { return containsPhrase(tokens, words(t)) })
}

// SearchCraving filters activities by keyword, category and synonym, then
// ranks the matches with the usual signals. Completed and skipped
// activities never match. An empty result carries an explanation.
func (s *Scorer) SearchCraving(query string, activities []model.Activity, ctx *Context) CravingResult {
	res := CravingResult{Query: strings.TrimSpace(query), Matches: []model.EnrichedActivity{}}
	if res.Query == "" {
		res.Explanation = "Tell me what you're in the mood for"
		return res
	}

	terms := expandQuery(res.Query)
	found := lo.Filter(activities, func(a model.Activity, _ int) bool {
		return !a.Done() && matches(&a, terms)
	})
	if len(found) == 0 {
		res.Explanation = fmt.Sprintf("Nothing on today's plan matches %q", res.Query)
		return res
	}

	res.Matches = s.score(found, ctx, doneCategories(activities))
	if len(res.Matches) == 1 {
		res.Explanation = fmt.Sprintf("1 place matches %q", res.Query)
	} else {
		res.Explanation = fmt.Sprintf("%d places match %q", len(res.Matches), res.Query)
	}
	return res
}

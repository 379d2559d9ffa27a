package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// normalizeText lowercases, strips diacritics, and collapses punctuation so
// token comparison survives source formatting differences.
func normalizeText(text string) string {
	decomposed := norm.NFKD.String(foldCaser.String(text))
	var builder strings.Builder
	builder.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks left over from decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		default:
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

func tokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range strings.Fields(normalizeText(text)) {
		tokens[token] = struct{}{}
	}
	return tokens
}

// tokenOverlap is the containment coefficient: shared tokens over the
// smaller set. Subtitles and series suffixes must not sink an otherwise
// exact title match.
func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	shared := 0
	for token := range a {
		if _, ok := b[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

// Similarity scores how likely two editions describe the same text: a
// weighted blend of title and author token overlap. When neither side names
// an author the score rests on the title alone.
func Similarity(titleA string, authorsA []string, titleB string, authorsB []string, titleWeight, authorWeight float64) float64 {
	titleScore := tokenOverlap(tokenSet(titleA), tokenSet(titleB))

	authorTokensA := tokenSet(strings.Join(authorsA, " "))
	authorTokensB := tokenSet(strings.Join(authorsB, " "))
	if len(authorTokensA) == 0 && len(authorTokensB) == 0 {
		return titleScore
	}
	authorScore := tokenOverlap(authorTokensA, authorTokensB)

	total := titleWeight + authorWeight
	if total <= 0 {
		return titleScore
	}
	return (titleWeight*titleScore + authorWeight*authorScore) / total
}

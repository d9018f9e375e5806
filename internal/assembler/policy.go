package assembler

import "strings"

// ExtractPolicy holds the publication-specific extract rules.
type ExtractPolicy struct {
	// ImageOnlySymbols are illustration publications whose extracts only
	// contribute still images.
	ImageOnlySymbols []string
	// EarlierOfPairImageOnly treats the earlier of two same-symbol extracts
	// at different ordinals as image-only.
	EarlierOfPairImageOnly bool
	// VisitSuppressedSymbols are extracts dropped during a visit week.
	VisitSuppressedSymbols []string
	// ExcludedSymbols are extracts never followed.
	ExcludedSymbols []string
	// SongSymbol is the song publication.
	SongSymbol string
	// ClosingSongFrom is the first ordinal of the closing-song range; zero
	// disables the range and the last song item is removed instead.
	ClosingSongFrom int
}

// DefaultPolicy returns the built-in rules. excludeTh adds the teaching
// brochure to the excluded symbols.
func DefaultPolicy(excludeTh bool) ExtractPolicy {
	p := ExtractPolicy{
		ImageOnlySymbols:       []string{"lffi"},
		EarlierOfPairImageOnly: true,
		VisitSuppressedSymbols: []string{"lffi"},
		ExcludedSymbols:        []string{"mwbr", "sjj"},
		SongSymbol:             "sjjm",
	}
	if excludeTh {
		p.ExcludedSymbols = append(p.ExcludedSymbols, "th")
	}
	return p
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// IsSong reports whether pub is the song publication or its alternate.
func (p ExtractPolicy) IsSong(pub string) bool {
	if p.SongSymbol == "" || pub == "" {
		return false
	}
	return strings.EqualFold(pub, p.SongSymbol) || strings.EqualFold(pub+"m", p.SongSymbol) ||
		strings.EqualFold(pub, p.SongSymbol+"m")
}

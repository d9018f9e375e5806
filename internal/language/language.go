package language

import "strings"

type entry struct {
	symbol  string   // publication language symbol
	locale  string   // ISO 639-1 (2-letter) or BCP 47 tag for sign languages
	display string   // Human-readable name
	sign    bool     // sign language
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"E", "en", "English", false, []string{"english"}},
	{"S", "es", "Spanish", false, []string{"spanish"}},
	{"F", "fr", "French", false, []string{"french"}},
	{"X", "de", "German", false, []string{"german"}},
	{"I", "it", "Italian", false, []string{"italian"}},
	{"T", "pt", "Portuguese", false, []string{"portuguese"}},
	{"J", "ja", "Japanese", false, []string{"japanese"}},
	{"KO", "ko", "Korean", false, []string{"korean"}},
	{"CHS", "zh", "Chinese", false, []string{"chinese"}},
	{"U", "ru", "Russian", false, []string{"russian"}},
	{"A", "ar", "Arabic", false, []string{"arabic"}},
	{"O", "nl", "Dutch", false, []string{"dutch"}},
	{"P", "pl", "Polish", false, []string{"polish"}},
	{"Z", "sv", "Swedish", false, []string{"swedish"}},
	{"D", "da", "Danish", false, []string{"danish"}},
	{"N", "no", "Norwegian", false, []string{"norwegian"}},
	{"FI", "fi", "Finnish", false, []string{"finnish"}},
	{"ASL", "ase", "American Sign Language", true, nil},
	{"BSL", "bfi", "British Sign Language", true, nil},
	{"LSF", "fsl", "French Sign Language", true, nil},
	{"DGS", "gsg", "German Sign Language", true, nil},
	{"LSE", "ssp", "Spanish Sign Language", true, nil},
	{"LSM", "mfs", "Mexican Sign Language", true, nil},
	{"LIBRAS", "bzs", "Brazilian Sign Language", true, nil},
}

// Index maps built at init time.
var (
	bySymbol map[string]*entry
	byLocale map[string]*entry
	byWord   map[string]*entry
)

func init() {
	bySymbol = make(map[string]*entry, len(languages))
	byLocale = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		bySymbol[strings.ToLower(e.symbol)] = e
		byLocale[e.locale] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := bySymbol[code]; ok {
		return e
	}
	if e, ok := byLocale[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize returns the canonical upper-case publication symbol for code.
// Unrecognized input is upper-cased and passed through.
func Normalize(code string) string {
	if e := lookup(code); e != nil {
		return e.symbol
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Locale returns the locale for a recognized symbol, or "".
func Locale(code string) string {
	if e := lookup(code); e != nil {
		return e.locale
	}
	return ""
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSignLanguage reports whether code names a sign language in the built-in
// table. The second result is false when the code is not in the table.
func IsSignLanguage(code string) (sign bool, known bool) {
	e := lookup(code)
	if e == nil {
		return false, false
	}
	return e.sign, true
}

// NormalizeList deduplicates and normalizes a list of language symbols,
// dropping empties while preserving order.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		symbol := Normalize(code)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		normalized = append(normalized, symbol)
	}
	return normalized
}

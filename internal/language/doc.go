// Package language maps publication language symbols ("E", "S", "ASL") to
// locales, display names, and sign-language flags.
//
// The built-in table covers common languages and is used when the remote
// language list is unreachable. Symbols are case-insensitive; lookups accept
// the publication symbol, the ISO 639-1 locale, or the English word.
package language

// Package medialinks resolves abstract media references into concrete
// downloadable files through the remote pub-media API.
//
// Client speaks the HTTP API. Resolver layers the lookup policy on top:
// preferred language, then the alternate publication symbol, then the
// fallback language; a resolution ceiling that keeps the best variant of each
// item; and optional subtitles borrowed from another language when the
// durations agree. A reference that matches nothing resolves to an empty
// slice, while transport failures surface as services.ErrNetwork so callers
// can tell offline apart from missing content.
package medialinks

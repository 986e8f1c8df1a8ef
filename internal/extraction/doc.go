// Package extraction turns a raw prompt into the named fields of a work item.
//
// Rule-based extraction (Extract) applies the ordered field patterns from the
// patterns package to the raw text. Labels are collected from the first
// explicit label list plus every hashtag, lower-cased and deduplicated.
//
// An Extractor adds an optional model on top:
//
//	ex, err := extraction.New(client, logger, extraction.WithScrubber(s))
//	fields := ex.Extract(ctx, prompt, item.TypeStory)
//
// When the model answers with a non-empty object it wins wholesale and only
// summary, labels and a subtask's parent_key are backfilled from the rules.
// Model failures never surface from Extract; they are logged and the
// rule-based result is used.
//
// Enrich and AnalyzeContext are advisory calls. Enrich only replaces keys the
// caller already had.
package extraction

package search

import "errors"

// errNoEmbedder marks dense retrieval as degraded when no embedder is
// configured, matching the ModelError handling spec.md §7 describes for
// the retrieval path: degrade the affected branch to empty and continue.
var errNoEmbedder = errors.New("search: no embedder configured")

// errBothRetrievalFailed is returned when lexical and dense retrieval both
// fail; spec.md §7 says this case alone is fatal to the query.
var errBothRetrievalFailed = errors.New("search: both lexical and dense retrieval failed")

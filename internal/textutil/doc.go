// Package textutil compares and sanitizes release names.
//
// Duplicate candidates come back from trackers with reordered or lightly
// edited names, so comparison goes through token-bag fingerprints and cosine
// similarity instead of exact matching. Titles also feed staging directory
// names and are scrubbed of filesystem-unsafe characters first.
package textutil

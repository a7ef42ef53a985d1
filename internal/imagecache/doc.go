// Package imagecache persists the per-release screenshot ledger that lets
// re-runs of the description composer skip capture and hosting work for
// buckets that were already uploaded.
package imagecache

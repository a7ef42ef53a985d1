// Package describe assembles per-tracker release descriptions from the
// metadata record, the screenshot collaborators, and the pack image cache.
package describe

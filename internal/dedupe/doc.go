// Package dedupe queries tracker catalogs for existing releases and
// normalizes the tracker-specific JSON and HTML result shapes into one
// candidate record for display and confirmation.
package dedupe

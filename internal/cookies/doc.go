// Package cookies manages per-tracker Netscape cookie files and the session
// lifecycle around them: load, validate against a known authenticated page,
// and save back only after positive validation.
package cookies

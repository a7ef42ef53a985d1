// Package torrents derives per-tracker torrent variants from a single base
// torrent: announce and source rewriting, comment scrubbing, optional
// info-dictionary entropy injection, and the post-upload comment stamp.
package torrents

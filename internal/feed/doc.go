// Package feed fetches podcast RSS documents with conditional requests and
// parses them into RawEntry-style Entry values using gofeed.
//
// Fetch keeps a small per-podcast validator cache (ETag, Last-Modified, and
// the last body) in the state directory so an unchanged feed costs a 304.
// EpisodeURL derives the episode page link from an entry the way the show
// notes are written: link element first, then the first anchor or bare URL in
// the description, then the podcast default.
package feed

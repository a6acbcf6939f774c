// Package numbering turns raw feed entries into numbered episodes.
//
// Each podcast carries a Strategy chosen at configuration time. The strategy
// supplies the explicit numbers (trusted tags, title patterns, exception
// pins) and the fill policy used for everything else. Resolve is pure: the
// same entries always produce the same numbering.
package numbering

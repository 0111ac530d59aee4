// Package classify maps raw simulation log text to protocol event kinds.
//
// A Classifier holds one ordered dialect. Rules are tried in declaration
// order and the first match wins, so a dialect that accepts alternate
// spellings of one marker must list the more specific spelling first when
// two spellings could overlap with another kind.
//
// Classification is pure: the same text always yields the same result and
// unknown text yields ir.Unclassified.
package classify

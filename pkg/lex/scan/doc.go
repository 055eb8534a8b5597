// Package scan provides the tag scanning helpers used by the lex parser.
//
// The functions here are pure: they take template text and return positions,
// never evaluate data and never import the lex package, so they can be tested
// on their own.
//
// # Tags
//
// Next and All locate {{ ... }} tags. A Tag records its bounds, its trimmed
// body and whether it was written self-closing ({{ name /}}).
//
// # Blocks
//
// MatchBlock pairs an opening tag with its {{ /name }} closer. Nesting is
// resolved with a depth counter over same-name tags rather than by content
// matching, so
//
//	{{ x }}A{{ x }}B{{ /x }}C{{ /x }}
//
// attributes A{{ x }}B{{ /x }}C to the outer block. When no closer exists
// MatchBlock reports false and callers treat the opening tag as a lone tag.
package scan

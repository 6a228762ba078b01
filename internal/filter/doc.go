// Package filter defines named file-selection policies and their persistent
// store. A Config is pure data plus validation; matching is done by a
// compiled Matcher so the walker never interprets raw patterns itself.
//
// Patterns are doublestar globs by default; a pattern prefixed with "re:" is
// compiled as a regular expression. Within a class (include vs exclude)
// patterns compose as OR; across classes a file must satisfy the includes AND
// not match the excludes.
package filter

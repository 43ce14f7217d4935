// Package selection compiles administrator queries into work filters.
//
// A query uses the token grammar of package query with three recognized
// keys:
//
//	identifier:ms-0042   exact identifier
//	title:psalter        case-insensitive title substring
//	imported:7d          imported within the last timespan
//
// Free-text tokens match the identifier, the title, or the metadata as a
// substring. Every token must match; keys that are not recognized are
// ignored.
package selection

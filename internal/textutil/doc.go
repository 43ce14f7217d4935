// Package textutil provides text helpers shared by the store, the import
// pipeline, and the CLI.
//
// The primary use cases are:
//   - Normalizing work identifiers to Unicode NFC so visually identical
//     identifiers dedupe to the same record
//   - Title fingerprints and cosine similarity for near-duplicate warnings
//   - Token sanitizing for message subjects and title casing for labels
package textutil

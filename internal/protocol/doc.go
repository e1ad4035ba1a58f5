// Package protocol owns the tag wire contract.
//
// Ownership boundary:
// - field names and status tokens
// - classification of decoded frames into message variants
// - response envelopes
//
// Framing (newline-delimited JSON) lives in the frame subpackage.
package protocol

// Package server runs the tag-facing TCP endpoint.
//
// Each accepted connection carries exactly one request frame and receives at
// most one response frame before it is closed:
//
//	await_frame -> dispatch -> respond -> closed
//
// A connection that ends before a complete frame, or whose frame is not a JSON
// object, is closed without a response; the tag times out and retries.
package server

// Package book resolves the best bid and ask carried by a VENUE_BOOK event.
//
// Venue payloads keep the original message under "raw". Each known payload
// schema is a Shape; Resolve tries them in a fixed order and returns the
// first one whose two keys are present and integral.
package book

// Package apng is used to do low-level APNG decoding.  A Decoder scans the
// stream's animation control chunk once, then walks the frame control and frame
// data chunks strictly forward, handing each frame's compressed pixels to a PNG
// Codec and compositing the result onto a persistent canvas according to the
// frame's dispose and blend operators.
//
// Plain PNG streams are accepted as single frame images.
//
// For format details, see:
//
// https://en.wikipedia.org/wiki/APNG#Technical_details
// https://wiki.mozilla.org/APNG_Specification
// https://www.w3.org/TR/PNG/
package apng

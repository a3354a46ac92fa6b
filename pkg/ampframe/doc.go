// Package ampframe implements the AMP wire framing layer: length-prefixed
// key/value boxes, in both the V1 (bounded value) and V2 (chained
// continuation) variants described by the Asynchronous Messaging Protocol.
//
// A frame is a sequence of (key, value) pairs, each preceded by a
// big-endian u16 length, terminated by a zero-length key segment:
//
//	frame = (klen key vlen value)* 0x0000
//
// This package only concerns itself with that framing; it knows nothing
// about reserved keys, request/response classification, or the
// type-directed encoding of application values (see pkg/ampserde and
// pkg/amp for those).
package ampframe

// Package ampserde implements the type-directed AMP value serializer: it
// maps Go structs and maps to and from an *ampframe.Box using reflection,
// the way encoding/json maps structs to and from a JSON object.
//
// The wire encoding is textual and Python-compatible: booleans encode as
// "True"/"False", numbers as decimal ASCII, floats recognize "nan",
// "inf" and "-inf". A nested struct or map field is itself encoded as a
// complete AMP frame and stored as the enclosing field's byte value;
// List[T] additionally supports AmpList, the protocol's encoding of a
// sequence of sub-records concatenated into one field value without an
// outer length prefix.
package ampserde

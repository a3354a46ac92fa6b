package ampserde

// List is the AmpList wire representation: a sequence of sub-records
// concatenated inside a single field value without an outer length
// prefix, each sub-record itself a complete AMP frame. Unlike a plain
// slice (which the serializer encodes as length-prefixed elements), a
// List[T] is for sequences of structs/maps only.
type List[T any] []T

// ampList is implemented by List[T] for any T, so the reflection-based
// encoder can recognize the shape without needing the generic parameter.
type ampList interface {
	isAmpList()
}

func (List[T]) isAmpList() {}

package ampserde

// Char is a single Unicode code point, encoded as the UTF-8 bytes of
// that one rune. Go has no primitive character type distinct from rune;
// Char exists so the encoder can tell "one character" apart from
// "string" at the type level, the way the original schema does.
type Char rune

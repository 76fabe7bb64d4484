package tagweaver

// UnknownTagPolicy controls what Process does with markup whose tag name is
// not registered in the library.
type UnknownTagPolicy int

const (
	UnknownCopy  UnknownTagPolicy = iota // pass through as literal output
	UnknownDrop                          // swallow the whole element
	UnknownError                         // fail with UnknownTagError
)

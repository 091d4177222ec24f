package recovery

// Strategy decides how the scanner and parser react to malformed
// constructs. Returning ActionFail aborts the operation; the other
// actions let processing continue with the error recorded or repaired.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies where in the document an error was observed.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

type Context interface{ Done() <-chan struct{} }

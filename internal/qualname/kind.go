package qualname

import "fmt"

// Kind tags what a Target or Definition is.
type Kind int

const (
	KindUnknown Kind = iota
	KindClass
	KindFunction
	// KindMethod is a bound or unbound method wrapping a function.
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// ParseKind maps "class", "function"/"def" and "method" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "function", "def", "":
		return KindFunction, nil
	case "method":
		return KindMethod, nil
	default:
		return KindUnknown, fmt.Errorf("unknown kind %q", s)
	}
}

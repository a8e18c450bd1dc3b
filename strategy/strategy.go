package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fxsml/gosplit/splitter"
)

var (
	// ErrUnknownKind is returned by FromConfig for an unknown strategy kind.
	ErrUnknownKind = errors.New("strategy: unknown kind")

	// ErrInvalidExpression is returned for an expression that cannot be compiled.
	ErrInvalidExpression = errors.New("strategy: invalid expression")

	// ErrInvalidDocument is returned for content the strategy cannot parse.
	ErrInvalidDocument = errors.New("strategy: invalid document")

	// ErrNotArray is returned by JSONPath when the selected value is not an array.
	ErrNotArray = errors.New("strategy: selected value is not an array")
)

// Kinds accepted by FromConfig.
const (
	KindXPath     = "xpath"
	KindJSONPath  = "jsonpath"
	KindDelimiter = "delimiter"
	KindLines     = "lines"
)

// FromConfig builds a strategy from its configured kind and expression.
// For KindDelimiter the expression is the separator; escape sequences
// \n, \t and \r are understood.
func FromConfig(kind, expr string) (splitter.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindXPath:
		return XPath(expr)
	case KindJSONPath, "json":
		return JSONPath(expr), nil
	case KindDelimiter:
		sep := unescape(expr)
		if sep == "" {
			return nil, fmt.Errorf("%w: empty delimiter", ErrInvalidExpression)
		}
		return Delimiter(sep, false), nil
	case KindLines, "":
		return Lines(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r")

func unescape(s string) string {
	return escapes.Replace(s)
}

package session

import (
	"fmt"
	"strings"

	radix "github.com/armon/go-radix"
)

// classifier guesses a coarse error family from the raw text's leading
// prefix. The guess is only a directive hint handed to the model; the
// authoritative errorType always comes from the structured result.
type classifier struct {
	prefixes *radix.Tree
}

func newClassifier() *classifier {
	t := radix.New()
	for prefix, family := range map[string]string{
		"TypeError":                         "JavaScript TypeError",
		"ReferenceError":                    "JavaScript ReferenceError",
		"SyntaxError":                       "syntax error",
		"RangeError":                        "JavaScript RangeError",
		"Uncaught ":                         "uncaught browser exception",
		"panic:":                            "Go panic",
		"fatal error:":                      "Go fatal runtime error",
		"Traceback (most recent call last)": "Python traceback",
		"Exception in thread":               "Java exception",
		"java.lang.":                        "Java exception",
		"Segmentation fault":                "native segmentation fault",
		"undefined reference to":            "linker error",
		"error[E":                           "Rust compiler error",
		"NullReferenceException":            "C# NullReferenceException",
	} {
		t.Insert(prefix, family)
	}
	return &classifier{prefixes: t}
}

// Hint returns a one-line directive hint for the error text, or empty when
// the leading line matches no known family.
func (c *classifier) Hint(errorText string) string {
	line := strings.TrimSpace(errorText)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if _, family, ok := c.prefixes.LongestPrefix(line); ok {
		return fmt.Sprintf("The input resembles a %s.", family)
	}
	return ""
}

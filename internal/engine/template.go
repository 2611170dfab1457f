package engine

import (
	"regexp"

	"github.com/seantiz/taskflow/internal/model"
)

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces every ${path} in tmpl with the text form of the context
// value at path. Unresolvable paths become the empty string. Substituted text
// is not scanned again.
func Substitute(c model.Context, tmpl string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, ok := c.Lookup(m[2 : len(m)-1])
		if !ok {
			return ""
		}
		return v.Text()
	})
}

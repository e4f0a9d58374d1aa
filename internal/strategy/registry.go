package strategy

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps strategy names to ready strategies. Names are hyphenated
// and matched case-insensitively.
type Registry struct {
	strategies *xsync.MapOf[string, Strategy]
}

// NewRegistry registers the built-in strategies, then languages, which
// replace built-ins of the same name.
func NewRegistry(deps Deps, languages ...Language) *Registry {
	r := &Registry{strategies: xsync.NewMapOf[string, Strategy]()}
	for _, lang := range DefaultLanguages() {
		r.Register(NewEngine(lang, deps))
	}
	r.Register(NewCheckOnly(deps))
	r.Register(NewDoNothing(deps))
	for _, lang := range languages {
		r.Register(NewEngine(lang, deps))
	}
	return r
}

func (r *Registry) Register(s Strategy) {
	r.strategies.Store(normalizeName(s.Name()), s)
}

func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies.Load(normalizeName(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.strategies.Range(func(name string, _ Strategy) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// normalizeName turns "CompileExecuteAndCheck" or "python_code" style names
// into the hyphenated lower-case form.
func normalizeName(name string) string {
	var b strings.Builder
	var prev rune
	for _, r := range strings.TrimSpace(name) {
		orig := r
		switch {
		case r == '_' || r == ' ':
			r = '-'
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
		prev = orig
	}
	return b.String()
}

package checkers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/programme-lv/runner/internal/models"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrUnknownChecker   = errors.New("unknown checker")
	ErrInvalidParameter = errors.New("invalid checker parameter")
)

// Result is the verdict of one comparison.
type Result struct {
	IsCorrect bool
	Details   string
}

// Checker compares the output of one test. A wrong answer is a Result, not
// an error; errors are reserved for malformed configuration.
type Checker interface {
	Check(input, actual, expected string, isTrialTest bool) (Result, error)
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(input, actual, expected string, isTrialTest bool) (Result, error)

func (f CheckerFunc) Check(input, actual, expected string, isTrialTest bool) (Result, error) {
	return f(input, actual, expected, isTrialTest)
}

// Factory builds a checker from the selector parameter.
type Factory func(parameter string) (Checker, error)

// DefaultType is used when a selector names no type.
const DefaultType = "trim"

type Registry struct {
	factories *xsync.MapOf[string, Factory]
}

// NewRegistry returns a registry with the built-in checkers registered.
func NewRegistry() *Registry {
	r := &Registry{factories: xsync.NewMapOf[string, Factory]()}
	r.Register("exact", newExact)
	r.Register("trim", newTrim)
	r.Register("case-insensitive", newCaseInsensitive)
	r.Register("precision", newPrecision)
	r.Register("sort-lines", newSortLines)
	r.Register("testlib", newTestlib)
	return r
}

// Register binds key to factory, replacing any previous binding. Keys are
// matched case-insensitively.
func (r *Registry) Register(key string, factory Factory) {
	r.factories.Store(strings.ToLower(key), factory)
}

// Resolve looks up the selector's key and builds the checker.
func (r *Registry) Resolve(sel models.CheckerSelector) (Checker, error) {
	key := strings.ToLower(sel.Key())
	if key == "" {
		key = DefaultType
	}
	factory, ok := r.factories.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChecker, key)
	}
	c, err := factory(sel.Parameter)
	if err != nil {
		return nil, fmt.Errorf("failed to build checker %q: %w", key, err)
	}
	return c, nil
}

// Keys lists the registered checker keys.
func (r *Registry) Keys() []string {
	var keys []string
	r.factories.Range(func(k string, _ Factory) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

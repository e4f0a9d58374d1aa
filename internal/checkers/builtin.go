package checkers

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/programme-lv/runner/internal/models"
)

const excerptLength = 120

func newExact(string) (Checker, error) {
	return CheckerFunc(func(_, actual, expected string, isTrialTest bool) (Result, error) {
		if actual == expected {
			return Result{IsCorrect: true}, nil
		}
		return compareLines(splitLines(actual), splitLines(expected), isTrialTest, equalStrings), nil
	}), nil
}

// newTrim ignores trailing spaces and tabs on every line and trailing empty
// lines at the end of the output.
func newTrim(string) (Checker, error) {
	return CheckerFunc(func(_, actual, expected string, isTrialTest bool) (Result, error) {
		return compareLines(normalizedLines(actual), normalizedLines(expected), isTrialTest, equalStrings), nil
	}), nil
}

func newCaseInsensitive(string) (Checker, error) {
	return CheckerFunc(func(_, actual, expected string, isTrialTest bool) (Result, error) {
		return compareLines(normalizedLines(actual), normalizedLines(expected), isTrialTest, strings.EqualFold), nil
	}), nil
}

// newSortLines accepts the lines in any order.
func newSortLines(string) (Checker, error) {
	return CheckerFunc(func(_, actual, expected string, isTrialTest bool) (Result, error) {
		a := nonEmpty(normalizedLines(actual))
		e := nonEmpty(normalizedLines(expected))
		slices.Sort(a)
		slices.Sort(e)
		return compareLines(a, e, isTrialTest, equalStrings), nil
	}), nil
}

// newPrecision compares whitespace separated tokens; numeric tokens match
// when they differ by at most 10^-digits. The parameter is the number of
// digits and defaults to 6.
func newPrecision(parameter string) (Checker, error) {
	digits := 6
	if p := strings.TrimSpace(parameter); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 15 {
			return nil, fmt.Errorf("%w: precision %q", ErrInvalidParameter, parameter)
		}
		digits = n
	}
	eps := math.Pow10(-digits)

	equal := func(a, b string) bool {
		if a == b {
			return true
		}
		x, errX := strconv.ParseFloat(a, 64)
		y, errY := strconv.ParseFloat(b, 64)
		if errX != nil || errY != nil {
			return false
		}
		return math.Abs(x-y) <= eps+1e-15
	}

	return CheckerFunc(func(_, actual, expected string, isTrialTest bool) (Result, error) {
		a := strings.Fields(actual)
		e := strings.Fields(expected)
		for i := range min(len(a), len(e)) {
			if !equal(a[i], e[i]) {
				return mismatch(fmt.Sprintf("token %d", i+1), e[i], a[i], isTrialTest), nil
			}
		}
		if len(a) != len(e) {
			return Result{Details: fmt.Sprintf("expected %d tokens, got %d", len(e), len(a))}, nil
		}
		return Result{IsCorrect: true}, nil
	}), nil
}

func equalStrings(a, b string) bool {
	return a == b
}

func compareLines(actual, expected []string, isTrialTest bool, equal func(a, b string) bool) Result {
	for i := range min(len(actual), len(expected)) {
		if !equal(actual[i], expected[i]) {
			return mismatch(fmt.Sprintf("line %d", i+1), expected[i], actual[i], isTrialTest)
		}
	}
	if len(actual) != len(expected) {
		return Result{Details: fmt.Sprintf("expected %d lines, got %d", len(expected), len(actual))}
	}
	return Result{IsCorrect: true}
}

// mismatch reveals the offending fragments only for trial tests, whose data
// is already visible to the submitter.
func mismatch(where, expected, actual string, isTrialTest bool) Result {
	if !isTrialTest {
		return Result{Details: where + " differs"}
	}
	return Result{Details: fmt.Sprintf("%s: expected %q, got %q",
		where,
		models.Truncate(expected, excerptLength),
		models.Truncate(actual, excerptLength))}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func normalizedLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	return lines[:end]
}

func nonEmpty(lines []string) []string {
	return slices.DeleteFunc(lines, func(l string) bool { return l == "" })
}

package models

import (
	"fmt"
	"strings"
)

type CompilerType int

const (
	CompilerNone CompilerType = iota
	CompilerCPlusPlusGcc
	CompilerCGcc
	CompilerGolang
)

var compilerTypeNames = map[CompilerType]string{
	CompilerNone:         "none",
	CompilerCPlusPlusGcc: "cpp-gcc",
	CompilerCGcc:         "c-gcc",
	CompilerGolang:       "golang",
}

func (c CompilerType) String() string {
	if name, ok := compilerTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compiler(%d)", int(c))
}

func ParseCompilerType(s string) (CompilerType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CompilerNone, nil
	}
	for ct, name := range compilerTypeNames {
		if name == s {
			return ct, nil
		}
	}
	return CompilerNone, fmt.Errorf("unknown compiler type %q", s)
}

func (c CompilerType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CompilerType) UnmarshalText(b []byte) error {
	ct, err := ParseCompilerType(string(b))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

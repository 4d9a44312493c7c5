package model

import (
	"fmt"
	"strings"
)

// SourceKind identifies one external platform a profile is pulled from.
type SourceKind string

const (
	Codeforces SourceKind = "codeforces"
	LeetCode   SourceKind = "leetcode"
	CodeChef   SourceKind = "codechef"
	AtCoder    SourceKind = "atcoder"
	Gfg        SourceKind = "gfg"
)

// Sources lists every known source in the order they are scraped and
// reported in.
var Sources = []SourceKind{Codeforces, LeetCode, CodeChef, AtCoder, Gfg}

func (s SourceKind) Valid() bool {
	for _, k := range Sources {
		if k == s {
			return true
		}
	}
	return false
}

func (s SourceKind) String() string {
	return string(s)
}

func ParseSourceKind(name string) (SourceKind, error) {
	kind := SourceKind(strings.ToLower(strings.Trim(name, " \t\n")))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown source '%s'", name)
	}
	return kind, nil
}

// SourceIndex returns the position of a source in Sources or -1.
func SourceIndex(s SourceKind) int {
	for i, k := range Sources {
		if k == s {
			return i
		}
	}
	return -1
}

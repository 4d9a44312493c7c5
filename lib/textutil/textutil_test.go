package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstInt(t *testing.T) {
	cases := []struct {
		text   string
		expect int
		ok     bool
	}{
		{text: "1500", expect: 1500, ok: true},
		{text: "Global Rank: 12,345 (top 5%)", expect: 12345, ok: true},
		{text: "(Highest Rating 1850)", expect: 1850, ok: true},
		{text: "Contribution: -3", expect: -3, ok: true},
		{text: "--", ok: false},
		{text: "", ok: false},
	}
	for _, test := range cases {
		n, ok := FirstInt(test.text)
		require.Equal(t, test.ok, ok, test.text)
		require.Equal(t, test.expect, n, test.text)
	}

	require.Equal(t, 7, IntOr("N/A", 7))
}

func TestSuggest(t *testing.T) {
	sources := []string{"codeforces", "leetcode", "codechef", "atcoder", "gfg"}
	require.Equal(t, "codeforces", Suggest("codefroces", sources))
	require.Equal(t, "leetcode", Suggest("Leet Code", sources))
	require.Equal(t, "", Suggest("zzzzzz", sources))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "leetcode", NormalizeName("  Leet\tCode\n"))
}

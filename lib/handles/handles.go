// Package handles pulls usernames out of profile links.
package handles

import (
	"net/url"
	"slices"
	"strings"

	"cptracker-backend/lib/model"

	"github.com/PuerkitoBio/purell"
)

type rule struct {
	hosts []string
	// prefixes are the path segments in front of the handle, an empty
	// prefix means the handle is the first segment.
	prefixes [][]string
	// reserved first segments that are never handles
	reserved []string
}

var rules = map[model.SourceKind]rule{
	model.Codeforces: {
		hosts:    []string{"codeforces.com", "m1.codeforces.com", "m2.codeforces.com", "m3.codeforces.com"},
		prefixes: [][]string{{"profile"}},
	},
	model.LeetCode: {
		hosts:    []string{"leetcode.com", "leetcode.cn"},
		prefixes: [][]string{{"u"}, {}},
		reserved: []string{
			"problems", "problemset", "contest", "discuss", "explore", "study-plan",
			"accounts", "subscribe", "assessment", "interview", "company", "tag", "u",
		},
	},
	model.CodeChef: {
		hosts:    []string{"codechef.com"},
		prefixes: [][]string{{"users"}},
	},
	model.AtCoder: {
		hosts:    []string{"atcoder.jp"},
		prefixes: [][]string{{"users"}},
	},
	model.Gfg: {
		hosts:    []string{"geeksforgeeks.org", "auth.geeksforgeeks.org"},
		prefixes: [][]string{{"user"}, {"profile"}},
	},
}

const normalizeFlags = purell.FlagsSafe |
	purell.FlagsUsuallySafeNonGreedy |
	purell.FlagRemoveDirectoryIndex |
	purell.FlagRemoveFragment |
	purell.FlagRemoveWWW

func parse(profileUrl string) (host string, segments []string, ok bool) {
	profileUrl = strings.TrimSpace(profileUrl)
	if profileUrl == "" {
		return "", nil, false
	}
	if !strings.Contains(profileUrl, "://") {
		profileUrl = "https://" + profileUrl
	}

	normalized, err := purell.NormalizeURLString(profileUrl, normalizeFlags)
	if err != nil {
		return "", nil, false
	}
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return "", nil, false
	}

	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.ToLower(parsed.Hostname()), segments, true
}

func (r rule) match(host string, segments []string) string {
	if !slices.Contains(r.hosts, host) {
		return ""
	}
	for _, prefix := range r.prefixes {
		if len(segments) <= len(prefix) {
			continue
		}
		if !slices.EqualFunc(prefix, segments[:len(prefix)], strings.EqualFold) {
			continue
		}
		handle := segments[len(prefix)]
		if len(prefix) == 0 && slices.Contains(r.reserved, strings.ToLower(handle)) {
			continue
		}
		unescaped, err := url.PathUnescape(handle)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(unescaped)
	}
	return ""
}

// Resolve extracts the handle for `source` from a profile link. It
// returns "" when the link is empty, unparsable or points somewhere other
// than a profile on that source.
func Resolve(profileUrl string, source model.SourceKind) string {
	r, ok := rules[source]
	if !ok {
		return ""
	}
	host, segments, ok := parse(profileUrl)
	if !ok {
		return ""
	}
	return r.match(host, segments)
}

// Detect finds which source a profile link belongs to and its handle.
func Detect(profileUrl string) (model.SourceKind, string) {
	host, segments, ok := parse(profileUrl)
	if !ok {
		return "", ""
	}
	for _, source := range model.Sources {
		handle := rules[source].match(host, segments)
		if handle != "" {
			return source, handle
		}
	}
	return "", ""
}

package scan

import (
	"regexp"
	"strings"
)

// pattern is one compiled glob rule.
//
//	*     any run of characters except /
//	**    any run of characters including /
//	**/   zero or more leading directories
//	?     one character except /
//	[...] character class, [!...] negated
//
// A leading / or any inner / anchors the pattern at the scan root;
// otherwise it matches the basename or any trailing path. A trailing /
// restricts it to directories.
type pattern struct {
	src      string
	re       *regexp.Regexp
	dirOnly  bool
	anchored bool
}

func compile(src string) (*pattern, error) {
	p := &pattern{src: src}
	body := src
	if strings.HasSuffix(body, "/") {
		p.dirOnly = true
		body = strings.TrimSuffix(body, "/")
	}
	if strings.HasPrefix(body, "/") {
		p.anchored = true
		body = strings.TrimPrefix(body, "/")
	} else {
		p.anchored = strings.Contains(body, "/")
	}

	prefix := "(^|/)"
	if p.anchored {
		prefix = "^"
	}
	re, err := regexp.Compile(prefix + translate(body) + "$")
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

func (p *pattern) match(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(rel)
}

// translate rewrites a glob body as a regular expression.
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); {
		switch c := glob[i]; c {
		case '*':
			switch {
			case strings.HasPrefix(glob[i:], "**/"):
				b.WriteString("(.*/)?")
				i += 3
			case strings.HasPrefix(glob[i:], "**"):
				b.WriteString(".*")
				i += 2
			default:
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := classEnd(glob, i)
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := glob[i+1 : end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i = end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}

// classEnd returns the index of the ] closing the class opened at start, or
// -1. A ] right after [ or [! is a literal member.
func classEnd(glob string, start int) int {
	j := start + 1
	if j < len(glob) && glob[j] == '!' {
		j++
	}
	if j < len(glob) && glob[j] == ']' {
		j++
	}
	if k := strings.IndexByte(glob[j:], ']'); k >= 0 {
		return j + k
	}
	return -1
}

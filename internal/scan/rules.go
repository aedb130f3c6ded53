package scan

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Rules is an ordered include/exclude list. The first matching rule
// decides; a path no rule matches is included.
type Rules struct {
	rules []rule
}

type rule struct {
	pat     *pattern
	include bool
}

// NewRules returns an empty rule list.
func NewRules() *Rules {
	return &Rules{}
}

// Include appends an include rule.
func (r *Rules) Include(glob string) error {
	return r.add(glob, true)
}

// Exclude appends an exclude rule.
func (r *Rules) Exclude(glob string) error {
	return r.add(glob, false)
}

func (r *Rules) add(glob string, include bool) error {
	p, err := compile(glob)
	if err != nil {
		return fmt.Errorf("pattern %q: %w", glob, err)
	}
	r.rules = append(r.rules, rule{pat: p, include: include})
	return nil
}

// Len returns the number of rules.
func (r *Rules) Len() int { return len(r.rules) }

// Match reports whether rel, a slash-separated path relative to the scan
// root, is kept.
func (r *Rules) Match(rel string, isDir bool) bool {
	for _, ru := range r.rules {
		if ru.pat.match(rel, isDir) {
			return ru.include
		}
	}
	return true
}

// Any reports whether any rule matches rel, whatever its direction.
func (r *Rules) Any(rel string, isDir bool) bool {
	for _, ru := range r.rules {
		if ru.pat.match(rel, isDir) {
			return true
		}
	}
	return false
}

// LoadFile appends rules from an ignore file:
//
//	- pattern   exclude
//	+ pattern   include
//	pattern     exclude
//	# comment
//
// A missing file is not an error.
func (r *Rules) LoadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		include := false
		if rest, ok := strings.CutPrefix(line, "+ "); ok {
			include, line = true, strings.TrimSpace(rest)
		} else if rest, ok := strings.CutPrefix(line, "- "); ok {
			line = strings.TrimSpace(rest)
		}
		if err := r.add(line, include); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}
	return sc.Err()
}

package expr

import (
	"regexp"
	"strings"

	"github.com/nullbound/reldb/dberr"
)

// likeToRegexp translates a SQL LIKE pattern into a Go regexp, mirroring
// the original engine's character-by-character translation: unescaped '%'
// becomes ".*", unescaped '_' becomes ".", backslash is the escape
// character ('\%' and '\_' become literal % and _, '\\' becomes a literal
// backslash, any other '\x' becomes a literal backslash followed by x),
// and every other character is quoted if it is itself a regex
// metacharacter.
func likeToRegexp(like string) (*regexp.Regexp, error) {
	pattern := escapeRe(like)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, dberr.InvalidLike(like)
	}
	return re, nil
}

func escapeRe(like string) string {
	var re strings.Builder
	re.Grow(len(like))
	escape := false
	for _, ch := range like {
		if escape {
			switch ch {
			case '%', '_':
				re.WriteRune(ch)
			default:
				if ch != '\\' {
					pushMeta(&re, '\\')
				}
				pushMeta(&re, ch)
			}
			escape = false
			continue
		}
		switch ch {
		case '\\':
			escape = true
		case '%':
			re.WriteString(".*")
		case '_':
			re.WriteByte('.')
		default:
			pushMeta(&re, ch)
		}
	}
	if escape {
		pushMeta(&re, '\\')
	}
	return re.String()
}

func pushMeta(b *strings.Builder, ch rune) {
	b.WriteString(regexp.QuoteMeta(string(ch)))
}

// Cache compiles each distinct LIKE pattern in a statement exactly once,
// up front, so a later per-row Eval never needs to recompile it.
type Cache struct {
	m map[string]*regexp.Regexp
}

func NewCache() *Cache { return &Cache{m: make(map[string]*regexp.Regexp)} }

func (c *Cache) Compile(pattern string) error {
	if _, ok := c.m[pattern]; ok {
		return nil
	}
	re, err := likeToRegexp(pattern)
	if err != nil {
		return err
	}
	c.m[pattern] = re
	return nil
}

func (c *Cache) Get(pattern string) *regexp.Regexp { return c.m[pattern] }

package expr

import "testing"

func TestEscapeRe(t *testing.T) {
	cases := []struct{ in, want string }{
		{`%_`, `.*.`},
		{`%_\%\_\\`, `.*.%_\\`},
		{`\n\r\t\\\`, `\\n\\r\\t\\\\`},
		{`.*.`, `\.\*\.`},
	}
	for _, c := range cases {
		got := escapeRe(c.in)
		if got != c.want {
			t.Errorf("escapeRe(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLikeToRegexpMatches(t *testing.T) {
	re, err := likeToRegexp(`a%b_c`)
	if err != nil {
		t.Fatal(err)
	}
	if !re.MatchString("axxxbyc") {
		t.Errorf("expected match")
	}
	if re.MatchString("abc") {
		t.Errorf("expected no match: '_' must consume exactly one character")
	}
}

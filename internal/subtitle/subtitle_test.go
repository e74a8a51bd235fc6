package subtitle

import "testing"

func TestEscapeUnescapeTextRoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"a & b",
		"<tag> & </tag>",
		"",
	}
	for _, s := range cases {
		got := unescapeText(escapeText(s))
		if got != s {
			t.Errorf("round trip %q -> %q, want %q", s, got, s)
		}
	}
}

func TestEscapeText(t *testing.T) {
	got := escapeText("a & b < c > d")
	want := "a &amp; b &lt; c &gt; d"
	if got != want {
		t.Errorf("escapeText = %q, want %q", got, want)
	}
}

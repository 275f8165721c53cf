package catalog

import "testing"

func TestTitleKey(t *testing.T) {
	cases := map[string]string{
		"Amélie":              "amelie",
		"  Fight Club  ":      "fight club",
		"WALL·E":              "walle",
		"Léon: The Professional": "leon the professional",
		"Spider-Man":          "spider man",
		"":                    "",
	}
	for raw, want := range cases {
		if got := TitleKey(raw); got != want {
			t.Errorf("TitleKey(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTitleKeyCollapsesWhitespace(t *testing.T) {
	if TitleKey("The   Good,  the Bad") != TitleKey("The Good the Bad") {
		t.Fatal("whitespace and punctuation should not affect the key")
	}
}

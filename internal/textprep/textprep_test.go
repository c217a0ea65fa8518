package textprep

import "testing"

func TestCanonicalizeForEmbedding(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace collapse", "fix  the\tbug\n\nnow", "fix the bug now"},
		{"case fold", "GetUserByID", "getuserbyid"},
		{"trim", "  padded  ", "padded"},
		{"nfkc fold", "ﬁle", "file"}, // ﬁ ligature decomposes
		{"empty", "   \n\t ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalizeForEmbedding(tc.in); got != tc.want {
				t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestContentHashStableAcrossEquivalentInputs(t *testing.T) {
	t.Parallel()
	a := ContentHash("Fix The  Bug")
	b := ContentHash("fix the bug")
	if a != b {
		t.Fatal("equivalent inputs must hash identically")
	}
	c := ContentHash("fix the bugs")
	if a == c {
		t.Fatal("different inputs must not collide on canonicalization")
	}
}

func TestDetectMode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		query string
		want  Mode
	}{
		{"getUserById", Code},
		{"get_user_by_id", Code},
		{"src/lib.rs", Code},
		{"Vec::new", Code},
		{"retry-backoff", Code},
		{"#include", Code},
		{"how does auth work", NaturalLanguage},
		{"what is the watermark", NaturalLanguage},
		{"the database migrations keep failing on startup", NaturalLanguage},
		// Code signals win ties: prose wording plus an identifier.
		{"how does getUserById work", Code},
		{"why is src/main.go slow", Code},
		// No strong signal: single bare token is treated as an identifier.
		{"embedder", Code},
		{"flaky tests", NaturalLanguage},
	}
	for _, tc := range cases {
		if got := DetectMode(tc.query); got != tc.want {
			t.Errorf("DetectMode(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	if got := Resolve(NaturalLanguage, "src/lib.rs"); got != NaturalLanguage {
		t.Fatalf("explicit mode must pass through, got %v", got)
	}
	if got := Resolve(Auto, "src/lib.rs"); got != Code {
		t.Fatalf("Auto must resolve via detection, got %v", got)
	}
}

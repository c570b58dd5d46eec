package ids

import "testing"

func TestToKebabCaseIdempotent(t *testing.T) {
	cases := []string{"Alice Smith", "bob_the-builder!!", "  trimme  ", "already-kebab"}
	for _, c := range cases {
		once := ToKebabCase(c)
		twice := ToKebabCase(once)
		if once != twice {
			t.Errorf("ToKebabCase not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestToKebabCaseBasic(t *testing.T) {
	if got := ToKebabCase("Alice Smith"); got != "alice-smith" {
		t.Errorf("got %q", got)
	}
}

func TestExtractMentions(t *testing.T) {
	got := ExtractMentions("hello @Alice and @bob, cc @alice")
	want := []string{"alice", "bob", "alice"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestExtractParagraphBeginningMentions(t *testing.T) {
	text := "@alice hi there\n\nnot a mention @bob\n\n@carol second paragraph"
	got := ExtractParagraphBeginningMentions(text)
	want := []string{"alice", "carol"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestDetermineSenderType(t *testing.T) {
	cases := map[string]SenderType{
		"system": SenderSystem,
		"world":  SenderWorld,
		"":       SenderHuman,
		"human":  SenderHuman,
		"user":   SenderHuman,
		"HUMAN":  SenderHuman,
		"alice":  SenderAgent,
	}
	for sender, want := range cases {
		if got := DetermineSenderType(sender); got != want {
			t.Errorf("DetermineSenderType(%q) = %q, want %q", sender, got, want)
		}
	}
}

func TestGetEnvValueFromText(t *testing.T) {
	block := "# comment\nworking_directory=/tmp/project\nOTHER=value\n"
	v, ok := GetEnvValueFromText(block, "working_directory")
	if !ok || v != "/tmp/project" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if _, ok := GetEnvValueFromText(block, "missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

package colorkey

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"#FF3860":   "#ff3860",
		" #abc ":    "#aabbcc",
		"#11223344": "#112233",
		"orange":    "#ffa500",
		"SteelBlue": "#4682b4",
	}
	for in, want := range cases {
		got, ok := Normalize(in)
		if !ok {
			t.Fatalf("expected %q to normalize", in)
		}
		if got != want {
			t.Fatalf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNormalize_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "#12", "#zzzzzz", "banana"} {
		if got, ok := Normalize(in); ok {
			t.Fatalf("expected %q to be rejected, got %q", in, got)
		}
	}
	if got := NormalizeOrDefault("banana"); got != DefaultColor {
		t.Fatalf("expected default colour, got %q", got)
	}
}

func TestFeatureKey_RoundTrip(t *testing.T) {
	key := FeatureKey("place-42")
	id, ok := ParseFeatureKey(key)
	if !ok || id != "place-42" {
		t.Fatalf("expected place-42, got %q ok=%v", id, ok)
	}
	id, ok = ParseFeatureKey("place-42")
	if !ok || id != "place-42" {
		t.Fatalf("expected bare id to parse, got %q ok=%v", id, ok)
	}
	if _, ok := ParseFeatureKey("marker:"); ok {
		t.Fatalf("expected empty key to be rejected")
	}
}

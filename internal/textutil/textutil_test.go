package textutil

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeIdentifierComposes(t *testing.T) {
	decomposed := "Code\u0301x-12"
	composed := "Cod\u00e9x-12"
	if got := NormalizeIdentifier("  " + decomposed + "\n"); got != composed {
		t.Fatalf("NormalizeIdentifier = %q, want %q", got, composed)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   error
	}{
		{"ms-0042", "ms-0042", nil},
		{"  ark:/13030/tf5p30086k ", "ark:/13030/tf5p30086k", nil},
		{"", "", ErrEmptyIdentifier},
		{"   ", "", ErrEmptyIdentifier},
		{"two words", "", ErrInvalidIdentifier},
		{"tab\tbed", "", ErrInvalidIdentifier},
	}
	for _, tt := range tests {
		got, err := ValidateIdentifier(tt.input)
		if !errors.Is(err, tt.err) {
			t.Fatalf("ValidateIdentifier(%q) error = %v, want %v", tt.input, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("ValidateIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"action_succeeded":  "action_succeeded",
		"Validate Metadata": "validate_metadata",
		"works.imported":    "works_imported",
		"  ":                "unknown",
		"***":               "unknown",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("storage_unavailable"); got != "Storage Unavailable" {
		t.Fatalf("Label = %q", got)
	}
	if got := Label("pending"); got != "Pending" {
		t.Fatalf("Label = %q", got)
	}
	if got := Label(""); got != "" {
		t.Fatalf("Label(empty) = %q", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Book of Hours", "book of hours", 1, 1},
		{"disjoint", "Book of Hours", "Herbal manuscript", 0, 0},
		{"partial", "Book of Hours, Use of Rome", "Book of Hours", 0.5, 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(NewFingerprint(tt.a), NewFingerprint(tt.b))
			if got < tt.min-1e-9 || got > tt.max+1e-9 {
				t.Fatalf("CosineSimilarity = %v, want within [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
	if got := CosineSimilarity(nil, NewFingerprint("x y")); got != 0 {
		t.Fatalf("expected 0 for nil fingerprint, got %v", got)
	}
	if NewFingerprint("a b c") != nil {
		t.Fatal("expected nil fingerprint when every token is too short")
	}
	if math.IsNaN(CosineSimilarity(NewFingerprint("ab"), NewFingerprint("ab"))) {
		t.Fatal("unexpected NaN")
	}
}

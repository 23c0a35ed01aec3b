package textnorm

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Acetilcisteína", "acetilcisteina"},
		{"INJEÇÃO  Intravenosa", "injecao  intravenosa"},
		{"Bólus", "bolus"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.expected {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  4.1   Indicações\tterapêuticas ")
	if got != "4.1 indicacoes terapeuticas" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Acetilcisteína", "acetilcisteina"},
		{"Cloreto de Potássio", "cloreto-de-potassio"},
		{"--Ácido  tranexâmico!!", "acido-tranexamico"},
		{"Vitamina B12 (cianocobalamina)", "vitamina-b12-cianocobalamina"},
		{"***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsLetter(t *testing.T) {
	for _, r := range []rune{'a', 'Z', 'é', 'Ú', 'ç'} {
		if !IsLetter(r) {
			t.Errorf("IsLetter(%q) = false, want true", r)
		}
	}
	for _, r := range []rune{'1', ' ', '-', '(', '%'} {
		if IsLetter(r) {
			t.Errorf("IsLetter(%q) = true, want false", r)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens(" Cloridrato  de Vancomicina ")
	want := []string{"cloridrato", "de", "vancomicina"}
	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

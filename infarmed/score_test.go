package infarmed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		c       Candidate
		holders []string
		want    int
	}{
		{"exact dci, name, injectable", Candidate{DCI: "Amiodarona", Name: "Amiodarona Generis", Form: "Solução injetável"}, nil, 100 + 40 + 30},
		{"dci contains", Candidate{DCI: "Cloridrato de amiodarona", Name: "Cordarone", Form: "Solução injetável"}, nil, 80 + 30},
		{"not injectable", Candidate{DCI: "Amiodarona", Name: "Cordarone", Form: "Comprimido"}, nil, 100 - 10},
		{"nothing matches", Candidate{DCI: "Heparina", Name: "Heparina", Form: "Comprimido"}, nil, -10},
		{"preferred holder", Candidate{DCI: "Amiodarona", Name: "X", Form: "Solução injetável", Holder: "Sanofi"}, []string{"Sanofi"}, 100 + 30 + 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.c, "amiodarona", tt.holders); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func ids(ranked []ScoredCandidate) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.InfarmedID
	}
	return out
}

func TestRank(t *testing.T) {
	candidates := []Candidate{
		{InfarmedID: "1", DCI: "Voriconazol", Name: "Vfend", Form: "Pó para solução para perfusão", Holder: "Pfizer"},
		{InfarmedID: "2", DCI: "Voriconazol", Name: "Voriconazol Normon", Form: "Pó para solução para perfusão", Holder: "Laboratórios Normon, S.A."},
		{InfarmedID: "3", DCI: "Voriconazol", Name: "Voriconazol Teva", Form: "Comprimido", Holder: "Teva"},
		{InfarmedID: "4", DCI: "Voriconazol", Name: "Voriconazol Generis", Form: "Pó para solução para perfusão", Holder: "Generis"},
	}

	t.Run("default holder override", func(t *testing.T) {
		got := ids(Rank(candidates, "voriconazol", "voriconazol", DefaultOverrides()))
		want := []string{"2", "4", "1"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("ties keep portal order", func(t *testing.T) {
		got := ids(Rank(candidates, "voriconazol", "voriconazol", &Overrides{}))
		want := []string{"2", "4", "1"}
		if got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("preferred index", func(t *testing.T) {
		ov := &Overrides{PreferredIndexes: map[string]int{"voriconazol": 2}}
		got := ids(Rank(candidates, "voriconazol", "voriconazol", ov))
		want := []string{"1", "2", "4"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("preferred index out of range is ignored", func(t *testing.T) {
		ov := &Overrides{PreferredIndexes: map[string]int{"voriconazol": 7}}
		got := ids(Rank(candidates, "voriconazol", "voriconazol", ov))
		if got[0] != "2" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("no injectables", func(t *testing.T) {
		got := Rank(candidates[2:3], "voriconazol", "voriconazol", nil)
		if len(got) != 0 {
			t.Fatalf("expected nothing, got %v", ids(got))
		}
	})
}

func TestLoadOverrides(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		ov, err := LoadOverrides("")
		if err != nil {
			t.Fatal(err)
		}
		if ov.PreferredIndexes["tigeciclina"] != 2 {
			t.Errorf("default index missing: %+v", ov)
		}
		if ov.PreferredHolders["voriconazol"][0] != "Laboratórios Normon, S.A." {
			t.Errorf("default holder missing: %+v", ov)
		}
	})

	t.Run("file replaces defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "overrides.yaml")
		content := "preferredHolders:\n  heparina:\n    - \"B. Braun\"\npreferredIndexes:\n  insulina: 1\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		ov, err := LoadOverrides(path)
		if err != nil {
			t.Fatal(err)
		}
		if ov.PreferredHolders["heparina"][0] != "B. Braun" || ov.PreferredIndexes["insulina"] != 1 {
			t.Errorf("unexpected overrides %+v", ov)
		}
		if _, ok := ov.PreferredIndexes["tigeciclina"]; ok {
			t.Error("defaults should be replaced")
		}
	})

	t.Run("negative index rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "overrides.yaml")
		if err := os.WriteFile(path, []byte("preferredIndexes:\n  x: -1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOverrides(path); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected an error")
		}
	})
}

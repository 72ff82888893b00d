package keyword

import "testing"

type staticDict map[string]int

func (d staticDict) Terms() (map[string]int, error) { return d, nil }

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "ab", 2},
		{"grafo", "grafo", 0},
		{"grafo", "grafos", 1},
		{"kitten", "sitting", 3},
		{"árvore", "arvore", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSpeller_Suggest(t *testing.T) {
	s, err := NewSpeller(staticDict{"grafo": 5, "grafos": 1, "garfo": 9, "busca": 3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := s.Suggest("grafp")
	if len(got) == 0 || got[0] != "grafo" {
		t.Errorf("Suggest(grafp) = %v, want grafo first", got)
	}
	if got := s.Suggest("xyzxyzxyz"); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSpeller_Correct(t *testing.T) {
	s, err := NewSpeller(staticDict{"algoritmo": 4, "dijkstra": 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	corrected, changed := s.Correct("Algoritmo dijsktra")
	if !changed || corrected != "algoritmo dijkstra" {
		t.Errorf("Correct = %q, %v", corrected, changed)
	}
	corrected, changed = s.Correct("algoritmo")
	if changed || corrected != "algoritmo" {
		t.Errorf("known term changed: %q", corrected)
	}
}

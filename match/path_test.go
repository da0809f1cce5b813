package match

import (
	"testing"
)

func TestNewPath(t *testing.T) {
	tests := []struct {
		dotted string
		parts  []string
	}{
		{
			dotted: "",
			parts:  nil,
		},
		{
			dotted: "a",
			parts:  []string{"a"},
		},
		{
			dotted: "a.b.c",
			parts:  []string{"a", "b", "c"},
		},
		{
			dotted: "a.",
			parts:  []string{"a", ""},
		},
		{
			dotted: "a..b",
			parts:  []string{"a", "", "b"},
		},
	}

	for testi, test := range tests {
		p := NewPath(test.dotted)

		if p.Empty() != (len(test.parts) == 0) {
			t.Fatalf("testi: %d, test: %+v, empty: %t",
				testi, test, p.Empty())
		}

		if p.NumParts() != len(test.parts) {
			t.Fatalf("testi: %d, test: %+v, numParts: %d",
				testi, test, p.NumParts())
		}

		for i, part := range test.parts {
			if p.Part(i) != part {
				t.Fatalf("testi: %d, test: %+v, part %d: %s",
					testi, test, i, p.Part(i))
			}
		}

		if !p.Empty() && p.Dotted() != test.dotted {
			t.Fatalf("testi: %d, test: %+v, dotted: %s",
				testi, test, p.Dotted())
		}
	}
}

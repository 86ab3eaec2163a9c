package grammar

import (
	"os"
	"testing"

	"golang.org/x/exp/ebnf"
)

// TestEBNF checks that grammar.ebnf is well-formed and that every production
// is reachable from Program, the same verification go/doc runs against the
// Go language spec's own embedded grammar.
func TestEBNF(t *testing.T) {
	const filename = "grammar.ebnf"

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	g, err := ebnf.Parse(filename, f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ebnf.Verify(g, "Program"); err != nil {
		t.Fatal(err)
	}
}

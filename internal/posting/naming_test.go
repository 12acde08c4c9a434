// internal/posting/naming_test.go
package posting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/user/postclaw/internal/types"
)

func TestDeriveLabelChain(t *testing.T) {
	tests := []struct {
		name string
		sess types.Session
		want string
	}{
		{
			"resolved label wins",
			types.Session{ResolvedLabel: "Blue Door Cafe", RawLabel: "blue door", Category: "food"},
			"Blue Door Cafe",
		},
		{
			"raw label next",
			types.Session{RawLabel: "blue door", Category: "food"},
			"blue door",
		},
		{
			"venue idiom from narrative",
			types.Session{Narrative: "We stumbled into Golden Lion Pub around noon.", Category: "drink"},
			"Golden Lion Pub",
		},
		{
			"venue idiom from supplement",
			types.Session{Supplement: "Dessert later at Rosa's Bakery was great.", Category: "food"},
			"Rosa's Bakery",
		},
		{
			"generic name filtered, falls to category",
			types.Session{Narrative: "Just some The Cafe nearby, nothing special really.", Category: "food"},
			"food",
		},
		{
			"category fallback",
			types.Session{Narrative: "no venues mentioned anywhere in this text", Category: "travel"},
			"travel",
		},
		{
			"unlabeled sentinel",
			types.Session{},
			UnlabeledName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveLabel(&tt.sess); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDateDigits(t *testing.T) {
	if got := DateDigits("2026-02-12"); got != "20260212" {
		t.Errorf("expected 20260212, got %s", got)
	}
}

func TestResolveDirNameSuffixes(t *testing.T) {
	base := t.TempDir()

	name, err := ResolveDirName(base, "20260212", "Cafe")
	if err != nil {
		t.Fatal(err)
	}
	if name != "20260212(Cafe)" {
		t.Fatalf("expected 20260212(Cafe), got %s", name)
	}
	if err := os.Mkdir(filepath.Join(base, name), 0o755); err != nil {
		t.Fatal(err)
	}

	name, err = ResolveDirName(base, "20260212", "Cafe")
	if err != nil {
		t.Fatal(err)
	}
	if name != "20260212(Cafe)_2" {
		t.Fatalf("expected 20260212(Cafe)_2, got %s", name)
	}
	if err := os.Mkdir(filepath.Join(base, name), 0o755); err != nil {
		t.Fatal(err)
	}

	name, err = ResolveDirName(base, "20260212", "Cafe")
	if err != nil {
		t.Fatal(err)
	}
	if name != "20260212(Cafe)_3" {
		t.Fatalf("expected 20260212(Cafe)_3, got %s", name)
	}
}

func TestResolveDirNameSanitizesLabel(t *testing.T) {
	name, err := ResolveDirName(t.TempDir(), "20260212", `bad/label:name?`)
	if err != nil {
		t.Fatal(err)
	}
	if name != "20260212(badlabelname)" {
		t.Errorf("expected sanitized name, got %s", name)
	}
}

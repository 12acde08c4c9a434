// internal/posting/generator.go
package posting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/postclaw/internal/types"
)

// MarkdownGenerator renders the collected session fields into a post
// document. It is the default generator; a richer one can be swapped in
// behind the same interface.
type MarkdownGenerator struct{}

// NewMarkdownGenerator creates a MarkdownGenerator.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

// Generate composes the markdown document for a ready session.
func (g *MarkdownGenerator) Generate(ctx context.Context, sess *types.Session) (string, error) {
	if sess.Narrative == "" {
		return "", fmt.Errorf("session %s has no narrative", sess.ActorID)
	}

	title := sess.ResolvedLabel
	if title == "" {
		title = DeriveLabel(sess)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	fmt.Fprintf(&b, "- Date: %s\n", sess.Date)
	fmt.Fprintf(&b, "- Category: %s\n", sess.Category)
	if sess.Location != nil {
		fmt.Fprintf(&b, "- Location: %.5f,%.5f\n", sess.Location.Lat, sess.Location.Lng)
	}
	b.WriteString("\n")

	b.WriteString(sess.Narrative)
	b.WriteString("\n")

	if sess.Supplement != "" {
		b.WriteString("\n")
		b.WriteString(sess.Supplement)
		b.WriteString("\n")
	}

	if len(sess.Artifacts) > 0 {
		b.WriteString("\n")
		for _, ref := range sess.Artifacts {
			fmt.Fprintf(&b, "![%s](%s/%s)\n", ref.Filename, ArtifactsDirName, ref.Filename)
		}
	}

	fmt.Fprintf(&b, "\n<!-- drafted %s -->\n", time.Now().UTC().Format("2006-01-02"))
	return b.String(), nil
}

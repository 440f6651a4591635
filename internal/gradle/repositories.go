package gradle

import (
	"fmt"
	"strings"
)

// Repository is one entry of a `repositories` block.
type Repository struct {
	Builtin string // google, mavenCentral, gradlePluginPortal, mavenLocal
	URL     string // maven repository URL when Builtin is empty
}

// Render returns the Groovy declaration.
func (r Repository) Render() string {
	if r.Builtin != "" {
		return r.Builtin + "()"
	}
	return fmt.Sprintf("maven { url '%s' }", strings.ReplaceAll(r.URL, "'", `\'`))
}

// ParseRepositories converts configured mirror strings into repositories.
// Bare identifiers are Gradle shorthands, anything else is a maven URL.
func ParseRepositories(mirrors []string) []Repository {
	repos := make([]Repository, 0, len(mirrors))
	for _, m := range mirrors {
		m = strings.TrimSuffix(strings.TrimSpace(m), "()")
		if m == "" {
			continue
		}
		if strings.Contains(m, "://") {
			repos = append(repos, Repository{URL: m})
			continue
		}
		repos = append(repos, Repository{Builtin: m})
	}
	return repos
}

// ApplyRepositories replaces the body of every `repositories { }` block in
// a build script with repos. It returns the new script and the number of
// blocks rewritten.
func ApplyRepositories(script string, repos []Repository) (string, int) {
	blocks := findBlocks(script, "repositories")
	if len(blocks) == 0 {
		return script, 0
	}
	body := func(indent string) string {
		var b strings.Builder
		for _, r := range repos {
			b.WriteString(indent)
			b.WriteString("    ")
			b.WriteString(r.Render())
			b.WriteByte('\n')
		}
		return b.String()
	}
	return replaceBodies(script, outermost(blocks), body), len(outermost(blocks))
}

// outermost drops blocks nested inside another block of the same list.
func outermost(blocks []block) []block {
	var out []block
	for _, b := range blocks {
		if len(out) > 0 && b.start < out[len(out)-1].close {
			continue
		}
		out = append(out, b)
	}
	return out
}

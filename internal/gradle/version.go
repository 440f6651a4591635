package gradle

import (
	"fmt"
	"strconv"
	"strings"
)

// AppVersion is written into the defaultConfig of app/build.gradle.
type AppVersion struct {
	Code int
	Name string
}

// ApplyAppVersion sets versionCode and versionName inside every
// `defaultConfig { }` block, adding the lines when missing.
func ApplyAppVersion(script string, v AppVersion) (string, bool) {
	blocks := outermost(findBlocks(script, "defaultConfig"))
	if len(blocks) == 0 {
		return script, false
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		indent := lineIndent(script, b.start) + "    "
		body := patchVersionLines(script[b.open+1:b.close], indent, v)
		script = script[:b.open+1] + body + script[b.close:]
	}
	return script, true
}

func patchVersionLines(body, indent string, v AppVersion) string {
	codeLine := "versionCode " + strconv.Itoa(v.Code)
	nameLine := fmt.Sprintf("versionName %s", strconv.Quote(v.Name))

	lines := strings.Split(body, "\n")
	var sawCode, sawName bool
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		switch {
		case hasKeyword(trimmed, "versionCode"):
			lines[i] = lead + codeLine
			sawCode = true
		case hasKeyword(trimmed, "versionName"):
			lines[i] = lead + nameLine
			sawName = true
		}
	}

	var missing []string
	if !sawCode {
		missing = append(missing, indent+codeLine)
	}
	if !sawName {
		missing = append(missing, indent+nameLine)
	}
	if len(missing) > 0 {
		// lines[0] follows the opening brace.
		lines = append(lines[:1], append(missing, lines[1:]...)...)
	}
	return strings.Join(lines, "\n")
}

func hasKeyword(line, kw string) bool {
	if !strings.HasPrefix(line, kw) {
		return false
	}
	rest := line[len(kw):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '='
}

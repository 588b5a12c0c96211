package engine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

/*
 * DiffRulesets renders the difference between the normalized declared
 * ruleset and the projected observed one as a line diff over their
 * canonical JSON. Returns "" when the two are structurally equal.
 * With color=true the output carries ANSI codes for terminal display;
 * without, lines are prefixed with -/+ for alert messages.
 */
func DiffRulesets(declared, observed *GithubRuleset, color bool) string {
	declaredJSON := canonicalJSON(declared)
	observedJSON := canonicalJSON(observed)
	if declaredJSON == observedJSON {
		return ""
	}

	dmp := diffmatchpatch.New()
	observedLines, declaredLines, lineArray := dmp.DiffLinesToChars(observedJSON, declaredJSON)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(observedLines, declaredLines, false), lineArray)

	if color {
		return dmp.DiffPrettyText(diffs)
	}

	var sb strings.Builder
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.Split(strings.TrimRight(diff.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Package decision extracts a moderation verdict from free-form LLM output.
//
// Models are instructed to answer with a formal "DECISION: REMOVE" or
// "DECISION: KEEP" line, but in practice responses drift: verbs get
// conjugated, the marker is dropped, or the verdict is buried in prose.
// Parse applies a fixed sequence of increasingly permissive rules and stops
// at the first one that yields a verdict.
package decision

import (
	"regexp"
	"strings"

	"github.com/modwatch/modwatch/internal/models"
)

// Verb families accepted as removal or retention verdicts, in any
// conjugation the patterns cover.
var (
	removeVerbs = []string{
		`REMOV(E|ED|ING|AL|ES)`,
		`DELET(E|ED|ING|ION)`,
		`BAN(NED|NING)?`,
		`BLOCK(ED|ING)?`,
		`ELIMINAT(E|ED|ING|ION)`,
	}

	keepVerbs = []string{
		`KEEP(S|ING|ER)?`,
		`KEPT`,
		`RETAIN(ED|ING|S)?`,
		`ALLOW(ED|ING|S)?`,
		`APPROV(E|ED|ING|AL)`,
		`ACCEPT(ED|ING|S)?`,
		`PERMIT(TED|TING|S)?`,
	}
)

var (
	removeFormalColon = compileAll(removeVerbs, `DECISION\s*:\s*(%s)`)
	keepFormalColon   = compileAll(keepVerbs, `DECISION\s*:\s*(%s)`)

	removeFormalBare = compileAll(removeVerbs, `DECISION\s+(%s)`)
	keepFormalBare   = compileAll(keepVerbs, `DECISION\s+(%s)`)

	removeAtEnd = compileAll(removeVerbs, `\b(%s)\s*$`)
	keepAtEnd   = compileAll(keepVerbs, `\b(%s)\s*$`)

	removeWord = compileAll(removeVerbs, `\b(%s)\b`)
	keepWord   = compileAll(keepVerbs, `\b(%s)\b`)
)

// Modal constructions that imply a verdict without naming one. Removal
// patterns are checked first so an ambiguous response errs toward review.
var (
	modalRemove = compileLiterals([]string{
		`(SHOULD|MUST|WILL|NEED TO|OUGHT TO)\s+(BE\s+)?(REMOV|DELET|BAN)`,
		`(BEEN|WAS|IS)\s+(REMOV|DELET|BAN)`,
		`(REMOV|DELET|BAN)\s+(IT|THIS|THAT)`,
		`\b(NEEDS?|REQUIRES?)\s+(REMOV|DELET)`,
		`\b(GET\s+RID\s+OF|TAKE\s+DOWN|PULL\s+DOWN)\b`,
	})

	modalKeep = compileLiterals([]string{
		`(SHOULD|MUST|WILL|CAN|OUGHT TO)\s+(BE\s+)?(KEEP|RETAIN|ALLOW|STAY)`,
		`(BEEN|WAS|IS)\s+(KEEP|RETAIN|ALLOW)`,
		`(KEEP|RETAIN|ALLOW)\s+(IT|THIS|THAT)`,
		`\b(LET\s+IT\s+STAY|LEAVE\s+IT|CAN\s+STAY)\b`,
		`\b(NO\s+NEED\s+TO\s+REMOV|DOES\s+NOT\s+NEED\s+REMOV)\b`,
	})
)

// Parse extracts a verdict from an LLM response. Rules run in order and the
// first hit wins:
//
//  1. formal "DECISION: <verb>" (colon optional whitespace)
//  2. formal "DECISION <verb>" without the colon
//  3. a verdict verb ending the response
//  4. a verdict verb anywhere in the last line
//  5. any verdict verb in the whole text, latest occurrence winning when
//     both families appear
//  6. modal phrasing ("should be removed", "let it stay"), removal first
//
// Responses matching none of the rules yield VerdictUnknown, which callers
// treat as "skip, do not act".
func Parse(response string) models.Verdict {
	text := strings.ToUpper(strings.TrimSpace(response))
	if text == "" {
		return models.VerdictUnknown
	}

	if matchAny(removeFormalColon, text) {
		return models.VerdictRemove
	}
	if matchAny(keepFormalColon, text) {
		return models.VerdictKeep
	}

	if matchAny(removeFormalBare, text) {
		return models.VerdictRemove
	}
	if matchAny(keepFormalBare, text) {
		return models.VerdictKeep
	}

	if matchAny(removeAtEnd, text) {
		return models.VerdictRemove
	}
	if matchAny(keepAtEnd, text) {
		return models.VerdictKeep
	}

	lines := strings.Split(text, "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if matchAny(removeWord, lastLine) {
		return models.VerdictRemove
	}
	if matchAny(keepWord, lastLine) {
		return models.VerdictKeep
	}

	lastRemove := lastOffset(removeWord, text)
	lastKeep := lastOffset(keepWord, text)
	switch {
	case lastRemove >= 0 && lastKeep >= 0:
		if lastRemove > lastKeep {
			return models.VerdictRemove
		}
		return models.VerdictKeep
	case lastRemove >= 0:
		return models.VerdictRemove
	case lastKeep >= 0:
		return models.VerdictKeep
	}

	if matchAny(modalRemove, text) {
		return models.VerdictRemove
	}
	if matchAny(modalKeep, text) {
		return models.VerdictKeep
	}

	return models.VerdictUnknown
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// lastOffset returns the start offset of the latest match across all
// patterns, or -1 when none match.
func lastOffset(res []*regexp.Regexp, text string) int {
	last := -1
	for _, re := range res {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] > last {
				last = loc[0]
			}
		}
	}
	return last
}

func compileAll(verbs []string, format string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(verbs))
	for _, verb := range verbs {
		res = append(res, regexp.MustCompile(strings.Replace(format, "%s", verb, 1)))
	}
	return res
}

func compileLiterals(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

package compare

import (
	"strconv"
	"strings"
)

const (
	NoRemediationProvided = "None provided."

	fieldStatus       = "status:"
	fieldReason       = "reason:"
	fieldRemediation  = "remediation:"
	fieldMatchPercent = "match percentage:"
)

// Verdict is the parsed answer of the judgment oracle.
type Verdict struct {
	Status       Status
	Reason       string
	Remediation  string
	MatchPercent int
}

// ParseVerdict reads the labelled lines of an oracle answer. It never fails: missing or
// malformed fields fall back to Other Issue, an empty reason, "None provided." and 0.
func ParseVerdict(raw string) Verdict {
	fields := make(map[string]string, 4)

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimLeft(line, " \t*-#>")
		lower := strings.ToLower(line)

		for _, prefix := range []string{fieldStatus, fieldReason, fieldRemediation, fieldMatchPercent} {
			if !strings.HasPrefix(lower, prefix) {
				continue
			}
			if _, seen := fields[prefix]; !seen {
				fields[prefix] = cleanValue(line[len(prefix):])
			}
			break
		}
	}

	verdict := Verdict{
		Status:       parseJudgedStatus(fields[fieldStatus]),
		Reason:       fields[fieldReason],
		Remediation:  fields[fieldRemediation],
		MatchPercent: parseMatchPercent(fields[fieldMatchPercent]),
	}

	if verdict.Remediation == "" {
		verdict.Remediation = NoRemediationProvided
	}

	return verdict
}

// parseJudgedStatus accepts only the statuses the oracle is asked to choose from.
func parseJudgedStatus(token string) Status {
	status, ok := LookupStatus(token)
	if !ok || status == StatusMissing {
		return StatusOtherIssue
	}
	return status
}

func parseMatchPercent(value string) int {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	percent, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// cleanValue drops surrounding whitespace and markdown emphasis left around a value.
func cleanValue(value string) string {
	return strings.Trim(value, " \t*")
}

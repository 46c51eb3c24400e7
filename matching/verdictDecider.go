package matching

// DecideVerdict maps discrepancy severities and the score to a status and
// the approval flags. It never looks at anything outside its arguments.
func DecideVerdict(discrepancies []Discrepancy, score int, policy Policy) Verdict {
	critical, major, minor := 0, 0, 0
	for _, d := range discrepancies {
		switch d.Severity {
		case SeverityCritical:
			critical++
		case SeverityMajor:
			major++
		case SeverityMinor:
			minor++
		}
	}

	var status MatchStatus
	switch {
	case critical > 0:
		status = MatchStatusDiscrepancy
	case major > 0, minor > 0:
		status = MatchStatusPartial
	default:
		status = MatchStatusMatched
	}

	return Verdict{
		Status:          status,
		AutoApproved:    status == MatchStatusMatched && score >= policy.MinScoreForApproval && critical == 0,
		InvoiceVerified: status == MatchStatusMatched,
	}
}

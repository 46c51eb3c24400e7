package matching

import (
	"errors"
	"strings"
)

type MatchStatus string

const (
	MatchStatusPending     MatchStatus = "pending"
	MatchStatusMatched     MatchStatus = "matched"
	MatchStatusPartial     MatchStatus = "partial"
	MatchStatusDiscrepancy MatchStatus = "discrepancy"
)

func ParseMatchStatus(s string) (MatchStatus, error) {
	statuses := map[string]MatchStatus{
		"pending":     MatchStatusPending,
		"matched":     MatchStatusMatched,
		"partial":     MatchStatusPartial,
		"discrepancy": MatchStatusDiscrepancy,
	}
	status, ok := statuses[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New("invalid match status")
	}
	return status, nil
}

type DiscrepancyKind string

const (
	DiscrepancyKindQuantity    DiscrepancyKind = "quantity"
	DiscrepancyKindPrice       DiscrepancyKind = "price"
	DiscrepancyKindTotal       DiscrepancyKind = "total"
	DiscrepancyKindMissingItem DiscrepancyKind = "missing_item"
)

func ParseDiscrepancyKind(s string) (DiscrepancyKind, error) {
	kinds := map[string]DiscrepancyKind{
		"quantity":     DiscrepancyKindQuantity,
		"price":        DiscrepancyKindPrice,
		"total":        DiscrepancyKindTotal,
		"missing_item": DiscrepancyKindMissingItem,
	}
	kind, ok := kinds[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New("invalid discrepancy kind")
	}
	return kind, nil
}

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	severities := map[string]Severity{
		"minor":    SeverityMinor,
		"major":    SeverityMajor,
		"critical": SeverityCritical,
	}
	severity, ok := severities[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.New("invalid severity")
	}
	return severity, nil
}

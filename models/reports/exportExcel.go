package reports

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/xuri/excelize/v2"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetSummary       = "Summary"
	sheetResults       = "Results"
	sheetDiscrepancies = "Discrepancies"
	sheetErrors        = "Errors"
)

var resultHeadings = []string{
	"PurchaseOrderId", "BillId", "Status", "Score", "AutoApproved",
	"PurchaseOrderTotal", "InvoiceTotal", "ReceiptTotal", "TotalVariancePct", "Discrepancies", "MatchedAt",
}

var discrepancyHeadings = []string{
	"PurchaseOrderId", "Kind", "Sku", "Severity", "Expected", "Actual", "Variance",
}

var errorHeadings = []string{
	"PurchaseOrderId", "Stage", "Message", "Retryable", "CreatedAt",
}

// SweepReport is everything exported for one sweep run.
type SweepReport struct {
	Run     models.MatchSweepRun
	Results []models.MatchResult
	Errors  []models.MatchSweepError
}

func (r SweepReport) FileName() string {
	return fmt.Sprintf("match-sweep-%d.xlsx", r.Run.ID)
}

// BuildSweepWorkbook lays the report out on four sheets.
func BuildSweepWorkbook(r SweepReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetResults, sheetDiscrepancies, sheetErrors} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	summary := [][]interface{}{
		{"SweepRunId", r.Run.ID},
		{"BusinessId", r.Run.BusinessId},
		{"Status", r.Run.Status},
		{"TriggeredBy", r.Run.TriggeredBy},
		{"CorrelationId", r.Run.CorrelationId},
		{"POsChecked", r.Run.POsChecked},
		{"MatchesCompleted", r.Run.MatchesCompleted},
		{"AutoApproved", r.Run.AutoApproved},
		{"DiscrepanciesFound", r.Run.DiscrepanciesFound},
		{"Skipped", r.Run.Skipped},
		{"Errors", r.Run.ErrorCount},
		{"DurationMs", r.Run.DurationMs},
	}
	if err := writeRows(f, sheetSummary, nil, summary); err != nil {
		return nil, err
	}

	results := make([][]interface{}, 0, len(r.Results))
	var discrepancies [][]interface{}
	for _, m := range r.Results {
		results = append(results, []interface{}{
			m.PurchaseOrderId, m.BillId, string(m.MatchStatus), m.MatchScore, m.AutoApproved,
			m.PurchaseOrderTotal.StringFixed(2), m.InvoiceTotal.StringFixed(2), m.ReceiptTotal.StringFixed(2),
			m.TotalVariancePct.StringFixed(2), m.DiscrepancyCount, m.MatchedAt.Format("2006-01-02 15:04:05"),
		})
		for _, d := range m.Discrepancies {
			discrepancies = append(discrepancies, discrepancyRow(m.PurchaseOrderId, d))
		}
	}
	if err := writeRows(f, sheetResults, resultHeadings, results); err != nil {
		return nil, err
	}
	if err := writeRows(f, sheetDiscrepancies, discrepancyHeadings, discrepancies); err != nil {
		return nil, err
	}

	errs := make([][]interface{}, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, []interface{}{
			e.PurchaseOrderId, e.Stage, e.Message, e.Retryable, e.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	if err := writeRows(f, sheetErrors, errorHeadings, errs); err != nil {
		return nil, err
	}

	return f, nil
}

// ExportSweepReport renders the workbook to bytes.
func ExportSweepReport(r SweepReport) ([]byte, error) {
	f, err := BuildSweepWorkbook(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func discrepancyRow(purchaseOrderId int, d matching.Discrepancy) []interface{} {
	return []interface{}{
		purchaseOrderId, string(d.Kind), d.Sku, string(d.Severity),
		d.Expected.String(), d.Actual.String(), d.Variance.String(),
	}
}

func writeRows(f *excelize.File, sheet string, headings []string, rows [][]interface{}) error {
	rowNo := 1
	if len(headings) > 0 {
		header := make([]interface{}, len(headings))
		for i, h := range headings {
			header[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		rowNo++
	}
	for _, row := range rows {
		row := row
		if err := f.SetSheetRow(sheet, "A"+fmt.Sprint(rowNo), &row); err != nil {
			return err
		}
		rowNo++
	}
	return nil
}

// SheetNames is exposed for callers that read reports back.
func SheetNames() []string {
	return []string{sheetSummary, sheetResults, sheetDiscrepancies, sheetErrors}
}

func safeObjectPart(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(strings.TrimSpace(s))
}

// ObjectName is the storage key for a run's report.
func ObjectName(r SweepReport) string {
	business := safeObjectPart(r.Run.BusinessId)
	if business == "" {
		business = "all"
	}
	return fmt.Sprintf("match-reports/%s/%s", business, r.FileName())
}

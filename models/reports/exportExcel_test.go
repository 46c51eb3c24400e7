package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportSweepReport(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	report := SweepReport{
		Run: models.MatchSweepRun{
			ID: 42, BusinessId: "biz 1", Status: models.SweepRunStatusPartial,
			POsChecked: 2, MatchesCompleted: 1, ErrorCount: 1,
		},
		Results: []models.MatchResult{{
			PurchaseOrderId:    7,
			BillId:             70,
			MatchStatus:        matching.MatchStatusDiscrepancy,
			MatchScore:         70,
			PurchaseOrderTotal: decimal.NewFromInt(100),
			InvoiceTotal:       decimal.NewFromInt(110),
			TotalVariancePct:   decimal.NewFromInt(10),
			Discrepancies: []matching.Discrepancy{{
				Kind:     matching.DiscrepancyKindTotal,
				Expected: decimal.NewFromInt(100),
				Actual:   decimal.NewFromInt(110),
				Variance: decimal.NewFromInt(10),
				Severity: matching.SeverityCritical,
			}},
			DiscrepancyCount: 1,
			MatchedAt:        at,
		}},
		Errors: []models.MatchSweepError{{PurchaseOrderId: 8, Stage: models.SweepStageFetch, Message: "timeout", Retryable: true, CreatedAt: at}},
	}

	data, err := ExportSweepReport(report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, SheetNames(), f.GetSheetList())

	results, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, resultHeadings, results[0])
	row := results[1]
	assert.Equal(t, []string{"7", "70", "discrepancy", "70"}, row[:4])
	assert.Equal(t, []string{"100.00", "110.00", "0.00", "10.00", "1", "2026-05-01 08:30:00"}, row[5:])

	discrepancies, err := f.GetRows("Discrepancies")
	require.NoError(t, err)
	require.Len(t, discrepancies, 2)
	assert.Equal(t, "total", discrepancies[1][1])
	assert.Equal(t, "critical", discrepancies[1][3])

	errs, err := f.GetRows("Errors")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, []string{"8", "fetch", "timeout"}, errs[1][:3])

	assert.Equal(t, "match-reports/biz_1/match-sweep-42.xlsx", ObjectName(report))
}

package main

import (
	"context"
	"os"

	"github.com/mmdatafocus/match_backend/matchapi"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/mmdatafocus/match_backend/models/reports"
	"github.com/mmdatafocus/match_backend/utils"
)

// exportSweepRun writes the run's report and returns where it went.
func exportSweepRun(ctx context.Context, store *models.MatchStore, runId uint, out string, toGCS bool, bucket string) (string, error) {
	report, err := matchapi.LoadSweepReport(ctx, store, runId)
	if err != nil {
		return "", err
	}
	data, err := reports.ExportSweepReport(*report)
	if err != nil {
		return "", err
	}

	if toGCS {
		return utils.UploadBytesToGCS(ctx, bucket, reports.ObjectName(*report), data, reports.XlsxContentType)
	}

	if out == "" {
		out = report.FileName()
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

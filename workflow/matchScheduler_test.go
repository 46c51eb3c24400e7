package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
)

func TestMatchScheduler_StopCancelsRunningSweep(t *testing.T) {
	source := &blockingSource{
		fakeSource: &fakeSource{inputs: map[int]*models.MatchInput{1: perfectInput(1)}},
		block:      2,
		entered:    make(chan struct{}),
	}
	runs := newFakeRuns(1, 2)
	sweeper := newTestSweeper(nil, newFakeSink(), runs, 1)
	sweeper.Matcher.Source = source

	scheduler, err := NewMatchScheduler(sweeper, config.MatchSweepConfig{
		Schedule: "*/15 * * * *",
		Workers:  1,
		Location: time.UTC,
	}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	ticked := make(chan struct{})
	go func() {
		scheduler.tick()
		close(ticked)
	}()
	<-source.entered

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
	select {
	case <-ticked:
	case <-stopCtx.Done():
		t.Fatal("scheduled sweep kept running after Stop")
	}

	if len(runs.runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs.runs))
	}
	for _, run := range runs.runs {
		if run.TriggeredBy != models.SweepTriggeredSchedule {
			t.Fatalf("unexpected trigger %q", run.TriggeredBy)
		}
		if run.Status != models.SweepRunStatusPartial || !run.Cancelled || run.FinishedAt == nil {
			t.Fatalf("expected finished partial run, got %+v", run)
		}
	}
}

func TestNewMatchScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewMatchScheduler(newTestSweeper(&fakeSource{}, newFakeSink(), newFakeRuns(), 1), config.MatchSweepConfig{
		Schedule: "every now and then",
		Location: time.UTC,
	}, quietLogger())
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

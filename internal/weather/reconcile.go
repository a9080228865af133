package weather

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	ID            string
	Started       time.Time
	Duration      time.Duration
	Rows          int
	Fetched       int
	Skipped       int
	FieldsUpdated int
	WriteFailures int
}

// Reconcile re-fetches the forecast of every stored city and writes back the
// fields whose freshly encoded value differs from the stored one. Failures
// are isolated per city and only logged; the next cycle retries them.
func (s *Service) Reconcile(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.NewString(), Started: time.Now().UTC()}
	defer func() {
		report.Duration = time.Since(report.Started)
		s.recorder.ObserveCycle(report)
	}()

	rows, err := s.store.ListAllRows(ctx)
	if err != nil {
		log.Printf("ERROR: reconcile %s: list rows: %v", report.ID, err)
		return report
	}
	report.Rows = len(rows)

	for _, row := range rows {
		if ctx.Err() != nil {
			log.Printf("reconcile %s: stopped: %v", report.ID, ctx.Err())
			return report
		}
		if !s.reconcileRow(ctx, &report, row) {
			report.Skipped++
		}
	}

	log.Printf("INFO: reconcile %s: rows=%d fetched=%d skipped=%d updated_fields=%d",
		report.ID, report.Rows, report.Fetched, report.Skipped, report.FieldsUpdated)
	return report
}

// reconcileRow returns false when the city was skipped for this cycle.
func (s *Service) reconcileRow(ctx context.Context, report *CycleReport, row CityForecast) bool {
	payload, status, err := s.refresh.Fetch(ctx, DailyForecastQuery(row.Lat, row.Lon, s.timezone))
	if err != nil {
		log.Printf("reconcile %s: fetch failed for %q: %v", report.ID, row.City, err)
		s.recorder.IncFetchFailure("transport")
		return false
	}
	if status != http.StatusOK {
		log.Printf("reconcile %s: provider status %d for %q: %s", report.ID, status, row.City, payload.Reason)
		s.recorder.IncFetchFailure(strconv.Itoa(status))
		return false
	}

	fresh, err := EncodeForecast(payload)
	if err != nil {
		log.Printf("reconcile %s: %q: %v", report.ID, row.City, err)
		s.recorder.IncFetchFailure("malformed")
		return false
	}
	report.Fetched++

	for _, f := range Fields {
		if row.PackedForecast.Equal(f, fresh) {
			continue
		}
		if err := s.store.UpdateField(ctx, row.ID, f, fresh.Value(f)); err != nil {
			log.Printf("ERROR: reconcile %s: update %s for %q: %v", report.ID, f, row.City, err)
			report.WriteFailures++
			continue
		}
		report.FieldsUpdated++
		s.recorder.IncFieldUpdate(f)
	}
	return true
}

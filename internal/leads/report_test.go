package leads

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBuildReport(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	leads := []Lead{
		{ID: 1, Name: "A", Status: StatusConverted, Source: "website", Score: 80, CreatedAt: now.AddDate(0, 0, -2)},
		{ID: 2, Name: "B", Status: StatusLost, Source: "website", Score: 20, CreatedAt: now.AddDate(0, 0, -3)},
		{ID: 3, Name: "C", Status: StatusQualified, Source: "referral", Score: 90, CreatedAt: now.AddDate(0, 0, -4)},
		{ID: 4, Name: "D", Status: StatusNew, Source: "website", Score: 70, CreatedAt: now.AddDate(0, 0, -40)},
	}

	rep, err := BuildReport(leads, "monthly", now)
	if err != nil {
		t.Fatalf("BuildReport error: %v", err)
	}
	if rep.Total != 3 {
		t.Errorf("total = %d, want 3", rep.Total)
	}
	if rep.ConversionRate != 50 {
		t.Errorf("conversion = %.1f, want 50", rep.ConversionRate)
	}
	if rep.AverageScore != float64(80+20+90)/3 {
		t.Errorf("average = %.2f", rep.AverageScore)
	}
	if len(rep.HighValue) != 1 || rep.HighValue[0].Name != "C" {
		t.Errorf("high value = %+v, want only active C", rep.HighValue)
	}
	if rep.Sources[0].Source != "website" || rep.Sources[0].Count != 2 {
		t.Errorf("sources = %+v", rep.Sources)
	}

	all, _ := BuildReport(leads, "all", now)
	if all.Total != 4 || len(all.HighValue) != 2 {
		t.Errorf("all = total %d, high %d", all.Total, len(all.HighValue))
	}
}

func TestBuildReport_NoClosedLeads(t *testing.T) {
	rep, err := BuildReport([]Lead{{Status: StatusNew}}, "all", time.Now())
	if err != nil {
		t.Fatalf("BuildReport error: %v", err)
	}
	if rep.ConversionRate != 0 {
		t.Errorf("conversion = %.1f, want 0", rep.ConversionRate)
	}
}

func TestBuildReport_UnknownPeriod(t *testing.T) {
	if _, err := BuildReport(nil, "yearly", time.Now()); err == nil {
		t.Error("expected error for yearly")
	}
}

func TestWriteReport(t *testing.T) {
	rep, _ := BuildReport([]Lead{{ID: 1, Name: "Ann", Company: "Acme", Status: StatusNew, Source: "website", Score: 75}}, "all", time.Now())
	var buf bytes.Buffer
	WriteReport(&buf, rep)
	out := buf.String()
	for _, want := range []string{"Lead Report (All)", "Total leads: 1", "#1 Ann (Acme) score 75"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

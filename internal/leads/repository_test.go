package leads

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(filepath.Join(t.TempDir(), "leads.json"))
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	step := 0
	repo.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	return repo
}

func TestRepository_AddDefaults(t *testing.T) {
	repo := newTestRepo(t)

	lead, err := repo.Add(NewLead{Name: "Ann", Email: "ann@x.com"})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if lead.ID != 1 {
		t.Errorf("id = %d, want 1", lead.ID)
	}
	if lead.Source != DefaultSource {
		t.Errorf("source = %q, want %q", lead.Source, DefaultSource)
	}
	if lead.Status != StatusNew {
		t.Errorf("status = %q, want new", lead.Status)
	}
	if lead.Score != 10 {
		t.Errorf("score = %d, want 10", lead.Score)
	}
	if lead.FollowUpDate != nil {
		t.Error("follow_up_date should be nil")
	}
}

func TestRepository_AddRequiresName(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Add(NewLead{Email: "x@y.com"}); !errors.Is(err, ErrInvalidLead) {
		t.Errorf("err = %v, want ErrInvalidLead", err)
	}
}

func TestRepository_IDsNotReusedAfterDelete(t *testing.T) {
	repo := newTestRepo(t)
	repo.Add(NewLead{Name: "A"})
	b, _ := repo.Add(NewLead{Name: "B"})
	if _, err := repo.Delete(b.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	c, err := repo.Add(NewLead{Name: "C"})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if c.ID != 3 {
		t.Errorf("id = %d, want 3", c.ID)
	}
}

func TestRepository_LegacyArrayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	legacy := `[{"id": 4, "name": "Old", "status": "new", "source": "referral"}]`
	os.WriteFile(path, []byte(legacy), 0644)

	repo := NewRepository(path)
	lead, err := repo.Add(NewLead{Name: "New"})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if lead.ID != 5 {
		t.Errorf("id = %d, want 5", lead.ID)
	}
	all, _ := repo.List(Filter{})
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

func TestRepository_UpdateAppendsNoteAndRescores(t *testing.T) {
	repo := newTestRepo(t)
	lead, _ := repo.Add(NewLead{Name: "Ann", Notes: "first contact"})

	status := StatusContacted
	company := "Acme"
	updated, err := repo.Update(lead.ID, Patch{Status: &status, Company: &company, Note: "needs it asap"})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Status != StatusContacted {
		t.Errorf("status = %q, want contacted", updated.Status)
	}
	if !strings.HasPrefix(updated.Notes, "first contact\n[2026-03-10] needs it asap") {
		t.Errorf("notes = %q", updated.Notes)
	}
	if updated.Score != 35 {
		t.Errorf("score = %d, want 35", updated.Score)
	}
	if !updated.UpdatedAt.After(lead.UpdatedAt) {
		t.Error("updated_at should advance")
	}
}

func TestRepository_UpdateInvalidStatus(t *testing.T) {
	repo := newTestRepo(t)
	lead, _ := repo.Add(NewLead{Name: "Ann"})
	bad := "won"
	if _, err := repo.Update(lead.ID, Patch{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Delete(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Update(99, Patch{Note: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListFiltersNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	repo.Add(NewLead{Name: "A", Source: "referral"})
	repo.Add(NewLead{Name: "B", Email: "b@x.com", Phone: "1", Company: "C"})
	repo.Add(NewLead{Name: "C", Source: "referral"})

	all, err := repo.List(Filter{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 3 || all[0].Name != "C" {
		t.Fatalf("order = %v, want C first", names(all))
	}

	referral, _ := repo.List(Filter{Source: "referral"})
	if len(referral) != 2 {
		t.Errorf("referral len = %d, want 2", len(referral))
	}
	scored, _ := repo.List(Filter{MinScore: 30})
	if len(scored) != 1 || scored[0].Name != "B" {
		t.Errorf("min score = %v, want [B]", names(scored))
	}
	limited, _ := repo.List(Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}
}

func TestRepository_FollowUps(t *testing.T) {
	repo := newTestRepo(t)
	a, _ := repo.Add(NewLead{Name: "Ann"})
	b, _ := repo.Add(NewLead{Name: "Bob"})
	repo.Add(NewLead{Name: "Cid"})

	got, err := repo.SetFollowUp(a.ID, 0, "")
	if err != nil {
		t.Fatalf("SetFollowUp error: %v", err)
	}
	if got.FollowUpNote != "Follow up with Ann" {
		t.Errorf("note = %q", got.FollowUpNote)
	}
	repo.SetFollowUp(b.ID, 20, "quarterly check")

	upcoming, err := repo.FollowUps(false, 7)
	if err != nil {
		t.Fatalf("FollowUps error: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].Lead.Name != "Ann" {
		t.Fatalf("upcoming = %+v, want Ann only", upcoming)
	}
	if upcoming[0].DaysUntil != 2 {
		t.Errorf("days until = %d, want 2", upcoming[0].DaysUntil)
	}

	due, _ := repo.FollowUps(true, 0)
	if len(due) != 0 {
		t.Errorf("due = %d, want 0", len(due))
	}
}

func TestExportImportCSVRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	repo.Add(NewLead{Name: "Ann Lee", Email: "ann@x.com", Notes: "ceo, says \"urgent\""})
	status := StatusQualified
	b, _ := repo.Add(NewLead{Name: "Bob", Email: "bob@x.com"})
	repo.Update(b.ID, Patch{Status: &status})

	leads, _ := repo.List(Filter{})
	var buf bytes.Buffer
	if err := Export(&buf, leads, "csv"); err != nil {
		t.Fatalf("Export error: %v", err)
	}

	records, err := Import(&buf, "csv")
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	other := newTestRepo(t)
	imported, skipped, err := other.ImportLeads(records)
	if err != nil || imported != 2 || skipped != 0 {
		t.Fatalf("ImportLeads = %d, %d, %v", imported, skipped, err)
	}

	back, _ := other.List(Filter{})
	byName := map[string]Lead{}
	for _, l := range back {
		byName[l.Name] = l
	}
	for _, orig := range leads {
		got, ok := byName[orig.Name]
		if !ok {
			t.Fatalf("missing %s after round trip", orig.Name)
		}
		if got.Email != orig.Email || got.Status != orig.Status {
			t.Errorf("%s = %s/%s, want %s/%s", orig.Name, got.Email, got.Status, orig.Email, orig.Status)
		}
		if got.Score != Score(got) {
			t.Errorf("%s score not recomputed", orig.Name)
		}
	}
}

func TestImportJSONSingleObject(t *testing.T) {
	records, err := Import(strings.NewReader(`{"name": "Solo", "email": "s@x.com"}`), "json")
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Solo" {
		t.Errorf("records = %+v", records)
	}
}

func TestExportSalesforce(t *testing.T) {
	leads := []Lead{{Name: "Ann Marie Lee", Email: "a@x.com", Source: "website", Status: "qualified"}}
	var buf bytes.Buffer
	if err := Export(&buf, leads, "salesforce"); err != nil {
		t.Fatalf("Export error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[1], "Ann,Marie Lee,a@x.com,,,website,Qualified,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if err := Export(&bytes.Buffer{}, nil, "xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func names(leads []Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.Name
	}
	return out
}

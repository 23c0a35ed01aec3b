package infarmed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dosesegura/dose-segura/logging"
)

var pdfBody = []byte("%PDF-1.4 fake document")

// fakePortal serves canned markup and documents
type fakePortal struct {
	mu         sync.Mutex
	results    map[string]string
	filters    map[string]string
	fetches    map[string]*Payload
	clicks     map[string][]*Payload
	searched   []string
	filtered   []string
	clickCount map[string]int
	closed     int
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		results:    map[string]string{},
		filters:    map[string]string{},
		fetches:    map[string]*Payload{},
		clicks:     map[string][]*Payload{},
		clickCount: map[string]int{},
	}
}

func (f *fakePortal) Search(_ context.Context, term string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, term)
	markup, ok := f.results[term]
	if !ok {
		return "", ErrNoResults
	}
	return markup, nil
}

func (f *fakePortal) ApplyRouteFilter(_ context.Context, label string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filtered = append(f.filtered, label)
	markup, ok := f.filters[label]
	if !ok {
		return "", ErrNoResults
	}
	return markup, nil
}

func (f *fakePortal) FetchDocument(_ context.Context, docID string) (*Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.fetches[docID]
	if !ok {
		return nil, errors.New("form not found")
	}
	return p, nil
}

func (f *fakePortal) ClickDocument(_ context.Context, docID string) (*Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.clickCount[docID]
	f.clickCount[docID] = n + 1
	attempts := f.clicks[docID]
	if n < len(attempts) && attempts[n] != nil {
		return attempts[n], nil
	}
	return nil, errors.New("no download event")
}

func (f *fakePortal) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func newTestDownloader(t *testing.T, portal *fakePortal) (*Downloader, string) {
	t.Helper()
	logging.InitLogger("")
	out := t.TempDir()
	d := NewDownloader(func(context.Context) (Portal, error) { return portal, nil }, Options{
		OutDir:       out,
		PortalURL:    DefaultPortalURL,
		RetryBackoff: time.Millisecond,
	})
	d.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return d, out
}

func links(rcm, fi string) string {
	var b strings.Builder
	if rcm != "" {
		b.WriteString(`<a id="` + rcm + `">RCM</a>`)
	}
	if fi != "" {
		b.WriteString(`<a id="` + fi + `">FI</a>`)
	}
	return b.String()
}

func okPDF() *Payload {
	return &Payload{Status: 200, ContentType: "application/pdf", Body: pdfBody}
}

func TestDownloadStoresBestMatch(t *testing.T) {
	portal := newFakePortal()
	portal.results["Amiodarona"] = resultTable(
		resultRow("200", "Amiodarona Comprimidos", "Amiodarona", "Comprimido", "A", links("c1RcmIcon", "")),
		resultRow("201", "Amiodarona Hikma", "Amiodarona", "Solução injetável", "Hikma", links("c2RcmIcon", "")),
	)
	portal.fetches["c2RcmIcon"] = okPDF()

	d, out := newTestDownloader(t, portal)
	meta, err := d.Download(context.Background(), "Amiodarona")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if meta == nil {
		t.Fatal("expected a match")
	}
	if portal.closed != 1 {
		t.Errorf("portal closed %d times, want 1", portal.closed)
	}

	if meta.MedID != "amiodarona" || meta.SearchTerm != "Amiodarona" {
		t.Errorf("unexpected meta %+v", meta)
	}
	if meta.BestMatch.InfarmedID != "201" || meta.BestMatch.Score != 100+40+30 {
		t.Errorf("unexpected best match %+v", meta.BestMatch)
	}
	if !meta.Documents.RCM.Succeeded() || meta.Documents.RCM.File != "rcm/201-rcm.pdf" {
		t.Errorf("unexpected rcm result %+v", meta.Documents.RCM)
	}
	if meta.Documents.RCM.URL != "https://extranet.infarmed.pt/INFOMED-fo/pesquisa-avancada.xhtml" {
		t.Errorf("url = %q", meta.Documents.RCM.URL)
	}
	if meta.Documents.FI.Status != StatusMissing {
		t.Errorf("fi status = %v, want missing", meta.Documents.FI.Status)
	}
	if meta.RunID == "" || meta.RetrievedAt != "2026-03-01T10:00:00Z" {
		t.Errorf("unexpected run metadata %q %q", meta.RunID, meta.RetrievedAt)
	}

	body, err := os.ReadFile(filepath.Join(out, "amiodarona", "rcm", "201-rcm.pdf"))
	if err != nil || string(body) != string(pdfBody) {
		t.Errorf("document not stored: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(out, "amiodarona", "meta.json"))
	if err != nil {
		t.Fatalf("meta.json missing: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	docs := decoded["documents"].(map[string]any)
	if docs["fi"].(map[string]any)["status"] != "missing" {
		t.Errorf("fi status in file = %v", docs["fi"])
	}
	if docs["rcm"].(map[string]any)["status"] != float64(200) {
		t.Errorf("rcm status in file = %v", docs["rcm"])
	}
	if decoded["bestMatch"].(map[string]any)["isGeneric"] != false {
		t.Errorf("isGeneric = %v", decoded["bestMatch"])
	}
}

func TestDownloadTriesNextSearchTerm(t *testing.T) {
	portal := newFakePortal()
	portal.results["cloridrato"] = resultTable()
	portal.results["cloridrato de"] = resultTable(
		resultRow("300", "Dopamina Generis MG", "Dopamina", "Concentrado para solução para perfusão", "Generis", links("", "d1FiIcon")),
	)
	portal.fetches["d1FiIcon"] = okPDF()

	d, _ := newTestDownloader(t, portal)
	meta, err := d.Download(context.Background(), "cloridrato de dopamina")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if meta == nil {
		t.Fatal("expected a match")
	}

	wantSearched := []string{"cloridrato de dopamina", "cloridrato", "cloridrato de"}
	if strings.Join(portal.searched, "|") != strings.Join(wantSearched, "|") {
		t.Errorf("searched %q, want %q", portal.searched, wantSearched)
	}
	if meta.SearchTerm != "cloridrato de" {
		t.Errorf("search term = %q", meta.SearchTerm)
	}
	if !meta.BestMatch.IsGeneric {
		t.Error("name with MG should be generic")
	}
	if meta.MedID != "cloridrato-de-dopamina" {
		t.Errorf("med id = %q", meta.MedID)
	}
}

func TestDownloadNoResults(t *testing.T) {
	portal := newFakePortal()
	d, out := newTestDownloader(t, portal)

	meta, err := d.Download(context.Background(), "xyz inexistente")
	if err != nil {
		t.Fatalf("no results should not fail: %v", err)
	}
	if meta != nil {
		t.Errorf("expected no match, got %+v", meta)
	}
	if portal.closed != 1 {
		t.Errorf("portal closed %d times, want 1", portal.closed)
	}
	if _, err := os.Stat(filepath.Join(out, "xyz-inexistente", "meta.json")); !os.IsNotExist(err) {
		t.Error("meta.json should not be written")
	}
}

func TestDownloadSkipsWithoutInjectables(t *testing.T) {
	portal := newFakePortal()
	portal.results["paracetamol"] = resultTable(
		resultRow("400", "Ben-u-ron", "Paracetamol", "Comprimido", "Bene", links("p1RcmIcon", "")),
	)
	d, out := newTestDownloader(t, portal)

	meta, err := d.Download(context.Background(), "paracetamol")
	if err != nil || meta != nil {
		t.Fatalf("expected no match without error, got %+v %v", meta, err)
	}
	if _, err := os.Stat(filepath.Join(out, "paracetamol")); !os.IsNotExist(err) {
		t.Error("no directory should be created")
	}
	if portal.closed != 1 {
		t.Errorf("portal closed %d times, want 1", portal.closed)
	}
}

func TestDownloadAppliesRouteFilter(t *testing.T) {
	rows := make([]string, 0, FilterThreshold)
	for i := 0; i < FilterThreshold; i++ {
		rows = append(rows, resultRow("50"+string(rune('0'+i)), "Heparina", "Heparina", "Comprimido", "H", links("hRcmIcon", "")))
	}

	portal := newFakePortal()
	portal.results["heparina"] = resultTable(rows...)
	portal.filters["EC - Via intravenosa (bólus)"] = resultTable(
		resultRow("600", "Heparina Sódica", "Heparina", "Solução injetável", "B. Braun", links("h6RcmIcon", "")),
	)
	portal.fetches["h6RcmIcon"] = okPDF()

	d, _ := newTestDownloader(t, portal)
	meta, err := d.Download(context.Background(), "heparina")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if meta == nil || meta.BestMatch.InfarmedID != "600" {
		t.Fatalf("filtered candidate should be chosen, got %+v", meta)
	}
	want := []string{"EC - Via intravenosa (perfusão)", "EC - Via intravenosa (bólus)"}
	if strings.Join(portal.filtered, "|") != strings.Join(want, "|") {
		t.Errorf("filters applied %q, want %q", portal.filtered, want)
	}
}

func TestDownloadBelowThresholdSkipsFilters(t *testing.T) {
	portal := newFakePortal()
	portal.results["heparina"] = resultTable(
		resultRow("700", "Heparina", "Heparina", "Solução injetável", "H", links("h7RcmIcon", "")),
	)
	portal.fetches["h7RcmIcon"] = okPDF()

	d, _ := newTestDownloader(t, portal)
	if _, err := d.Download(context.Background(), "heparina"); err != nil {
		t.Fatal(err)
	}
	if len(portal.filtered) != 0 {
		t.Errorf("no filter expected, got %v", portal.filtered)
	}
}

func TestDownloadFallsBackToClicks(t *testing.T) {
	portal := newFakePortal()
	portal.results["alfentanil"] = resultTable(
		resultRow("800", "Rapifen", "Alfentanil", "Solução injetável", "Piramal", links("aRcmIcon", "aFiIcon")),
	)
	// direct fetch answers with the search page instead of the PDF
	portal.fetches["aRcmIcon"] = &Payload{Status: 200, ContentType: "text/html", Body: []byte("<html>")}
	portal.clicks["aRcmIcon"] = []*Payload{nil, okPDF()}
	// FI never arrives
	portal.clicks["aFiIcon"] = []*Payload{{Status: 200, ContentType: "text/html", Body: []byte("<html>")}}

	d, out := newTestDownloader(t, portal)
	meta, err := d.Download(context.Background(), "alfentanil")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if portal.clickCount["aRcmIcon"] != 2 {
		t.Errorf("rcm clicks = %d, want 2", portal.clickCount["aRcmIcon"])
	}
	if portal.clickCount["aFiIcon"] != 2 {
		t.Errorf("fi clicks = %d, want 2", portal.clickCount["aFiIcon"])
	}
	if !meta.Documents.RCM.Succeeded() {
		t.Errorf("rcm should succeed: %+v", meta.Documents.RCM)
	}
	if meta.Documents.FI.Status != StatusFailed {
		t.Errorf("fi status = %v, want failed", meta.Documents.FI.Status)
	}
	if _, err := os.Stat(filepath.Join(out, "alfentanil", "fi", "800-fi.pdf")); !os.IsNotExist(err) {
		t.Error("failed document should not be written")
	}
}

func TestDownloadMovesToNextCandidate(t *testing.T) {
	portal := newFakePortal()
	portal.results["tigeciclina"] = resultTable(
		resultRow("901", "Tigeciclina Tygacil", "Tigeciclina", "Pó para solução para perfusão", "Pfizer", links("t1RcmIcon", "")),
		resultRow("902", "Generis", "Tigeciclina", "Pó para solução para perfusão", "Generis", links("t2RcmIcon", "")),
	)
	portal.fetches["t2RcmIcon"] = okPDF()

	d, _ := newTestDownloader(t, portal)
	d.overrides = &Overrides{}

	meta, err := d.Download(context.Background(), "tigeciclina")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BestMatch.InfarmedID != "902" {
		t.Errorf("second candidate should be kept, got %s", meta.BestMatch.InfarmedID)
	}
}

func TestDownloadKeepsFirstCandidateWhenAllFail(t *testing.T) {
	portal := newFakePortal()
	portal.results["tigeciclina"] = resultTable(
		resultRow("901", "Tigeciclina Tygacil", "Tigeciclina", "Pó para solução para perfusão", "Pfizer", links("t1RcmIcon", "")),
		resultRow("902", "Generis", "Tigeciclina", "Pó para solução para perfusão", "Generis", links("t2RcmIcon", "")),
	)

	d, _ := newTestDownloader(t, portal)
	d.overrides = &Overrides{}

	meta, err := d.Download(context.Background(), "tigeciclina")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BestMatch.InfarmedID != "901" {
		t.Errorf("first attempted candidate should be kept, got %s", meta.BestMatch.InfarmedID)
	}
	if meta.Documents.RCM.Status != StatusFailed {
		t.Errorf("rcm status = %v", meta.Documents.RCM.Status)
	}
}

func TestDownloadBrowserUnavailable(t *testing.T) {
	logging.InitLogger("")
	d := NewDownloader(func(context.Context) (Portal, error) {
		return nil, ErrBrowserUnavailable
	}, Options{OutDir: t.TempDir()})

	if _, err := d.Download(context.Background(), "amiodarona"); !errors.Is(err, ErrBrowserUnavailable) {
		t.Errorf("expected ErrBrowserUnavailable, got %v", err)
	}
}

func TestDocumentStatusJSON(t *testing.T) {
	tests := []struct {
		status DocumentStatus
		want   string
	}{
		{StatusCode(200), `200`},
		{StatusFailed, `"failed"`},
		{StatusMissing, `"missing"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.status)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Errorf("marshal %v = %s, want %s", tt.status, b, tt.want)
		}
		var back DocumentStatus
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatal(err)
		}
		if back != tt.status {
			t.Errorf("unmarshal %s = %v", b, back)
		}
	}

	var bad DocumentStatus
	if err := json.Unmarshal([]byte(`{}`), &bad); err == nil {
		t.Error("object status should be rejected")
	}
}

func TestReadMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	content := `{"runId":"x","medId":"a","bestMatch":{"infarmedId":"1"},"documents":{"rcm":{"status":200,"size":10},"fi":{"status":"missing"}}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	m, err := ReadMeta(path)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Documents.RCM.Succeeded() || m.Documents.FI.Status != StatusMissing || m.BestMatch.InfarmedID != "1" {
		t.Errorf("unexpected meta %+v", m)
	}
}

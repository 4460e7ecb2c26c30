package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/normalize"
	"github.com/lox/keiba/internal/store"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseResultPage(t *testing.T) {
	page, err := ParseResultPage(openFixture(t, "race_result.html"))
	if err != nil {
		t.Fatalf("ParseResultPage: %v", err)
	}
	if len(page.Results.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(page.Results.Rows))
	}
	if got := len(page.Results.Header); got != 15 {
		t.Errorf("len(Header) = %d, want 15", got)
	}
	if !reflect.DeepEqual(page.HorseIDs, []string{"2020104567", "2020103333"}) {
		t.Errorf("HorseIDs = %v", page.HorseIDs)
	}
	if !reflect.DeepEqual(page.JockeyIDs, []string{"01170", "05339"}) {
		t.Errorf("JockeyIDs = %v", page.JockeyIDs)
	}

	rows, err := normalize.Results(page.Results, page.Intro, "202305021211", page.HorseIDs, page.JockeyIDs)
	if err != nil {
		t.Fatalf("normalize.Results: %v", err)
	}
	a := rows[0]
	if a.Surface != models.SurfaceTurf || a.Distance != 2400 || a.Ground != models.GroundFirm {
		t.Errorf("course = %s/%d/%s, want 芝/2400/良", a.Surface, a.Distance, a.Ground)
	}
	if a.Class != models.ClassOpen || a.Weather != models.WeatherFine {
		t.Errorf("class/weather = %s/%s", a.Class, a.Weather)
	}
	if a.Date != "2023年5月28日" {
		t.Errorf("Date = %q", a.Date)
	}
	if a.Time != "0:2:25.2" || a.Trainer != "調教師乙" {
		t.Errorf("time/trainer = %q/%q", a.Time, a.Trainer)
	}

	if len(page.Returns.Rows) != 4 {
		t.Fatalf("len(Returns.Rows) = %d, want 4", len(page.Returns.Rows))
	}
	returns, err := normalize.Returns(page.Returns, "202305021211")
	if err != nil {
		t.Fatalf("normalize.Returns: %v", err)
	}
	if !reflect.DeepEqual(returns[1].Selections(), [][]int{{5}, {14}, {3}}) {
		t.Errorf("place Selections = %v", returns[1].Selections())
	}
	if !reflect.DeepEqual(returns[1].Payouts(), []int{130, 390, 210}) {
		t.Errorf("place Payouts = %v", returns[1].Payouts())
	}
	if returns[3].BetType != models.BetTrio || returns[3].Selection != "3-5-14" || returns[3].Payout != "4350" {
		t.Errorf("trio = %+v", returns[3])
	}
}

func TestParseResultPageMissing(t *testing.T) {
	_, err := ParseResultPage(strings.NewReader("<html><body><p>お探しのページは見つかりませんでした</p></body></html>"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	_, err = ParseReturnsPage(strings.NewReader("<html></html>"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("returns err = %v, want ErrNotFound", err)
	}
}

type venues struct{ cfg *config.Config }

func (v venues) VenueCode(name string) int    { return v.cfg.VenueCode(name) }
func (v venues) VenueByName(text string) int { return v.cfg.VenueByName(text) }

func TestParseHistoryPage(t *testing.T) {
	raw, err := ParseHistoryPage(openFixture(t, "horse_history.html"))
	if err != nil {
		t.Fatalf("ParseHistoryPage: %v", err)
	}
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	past, err := normalize.PastRaces(raw, "2020104567", venues{cfg})
	if err != nil {
		t.Fatalf("normalize.PastRaces: %v", err)
	}
	if len(past) != 2 {
		t.Fatalf("len(past) = %d, want 2", len(past))
	}
	if past[0].RaceID != "202305021211" {
		t.Errorf("past[0].RaceID = %q, want 202305021211", past[0].RaceID)
	}
	if past[1].RaceID != "202306030811" {
		t.Errorf("past[1].RaceID = %q, want 202306030811", past[1].RaceID)
	}
	if past[0].Last3F == nil || *past[0].Last3F != 33.9 {
		t.Errorf("past[0].Last3F = %v, want 33.9", past[0].Last3F)
	}

	if _, err := ParseHistoryPage(strings.NewReader("<table><tr><th>受賞歴</th></tr></table>")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("no history err = %v, want ErrNotFound", err)
	}
}

// ancestorName avoids digits, which start the birth-year line of a cell.
func ancestorName(gen, n int) string {
	return fmt.Sprintf("Anc%c%c%c", 'A'+gen, 'a'+n/26, 'a'+n%26)
}

// bloodTable renders a five-generation table the way the site nests it: each
// row starts with the cells whose span begins there.
func bloodTable() string {
	var b strings.Builder
	b.WriteString(`<table class="blood_table">`)
	n := 0
	for row := 0; row < 32; row++ {
		b.WriteString("<tr>")
		for g, span := range []int{16, 8, 4, 2, 1} {
			if row%span != 0 {
				continue
			}
			name := ancestorName(g, n)
			n++
			if span > 1 {
				fmt.Fprintf(&b, `<td rowspan="%d"><a href="#">%s</a><br>2001 鹿毛</td>`, span, name)
			} else {
				fmt.Fprintf(&b, `<td><a href="#">%s</a></td>`, name)
			}
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func TestParsePedigreePage(t *testing.T) {
	cells, err := ParsePedigreePage(strings.NewReader(bloodTable()))
	if err != nil {
		t.Fatalf("ParsePedigreePage: %v", err)
	}
	if len(cells) != models.PedigreeSize {
		t.Fatalf("len(cells) = %d, want %d", len(cells), models.PedigreeSize)
	}
	if cells[0].Rowspan != 16 || cells[4].Rowspan != 1 {
		t.Errorf("rowspans = %d, %d, want 16, 1", cells[0].Rowspan, cells[4].Rowspan)
	}

	p, err := normalize.Pedigree("2020104567", cells)
	if err != nil {
		t.Fatalf("normalize.Pedigree: %v", err)
	}
	if want := ancestorName(0, 0); p.Sire() != want {
		t.Errorf("Sire = %q, want %q", p.Sire(), want)
	}
	if !strings.HasPrefix(p.Dam(), "AncA") || p.Dam() == p.Sire() {
		t.Errorf("Dam = %q", p.Dam())
	}
	if !strings.HasPrefix(p.Damsire(), "AncB") {
		t.Errorf("Damsire = %q, want a second-generation name", p.Damsire())
	}

	if _, err := ParsePedigreePage(strings.NewReader(`<table class="blood_table"><tr><td rowspan="x">a</td></tr></table>`)); !models.IsParseError(err) {
		t.Errorf("bad rowspan err = %v, want ParseError", err)
	}
}

func TestParseRaceCardPage(t *testing.T) {
	page, err := ParseRaceCardPage(openFixture(t, "shutuba.html"))
	if err != nil {
		t.Fatalf("ParseRaceCardPage: %v", err)
	}
	if page.Name != "3歳未勝利" {
		t.Errorf("Name = %q", page.Name)
	}
	if !reflect.DeepEqual(page.HorseIDs, []string{"2021100001", "2021100002"}) {
		t.Errorf("HorseIDs = %v", page.HorseIDs)
	}
	info := normalize.ParseCardInfo(page.Name, page.Info)
	if info.Surface != models.SurfaceDirt || info.Distance != 1800 || info.Ground != models.GroundGood {
		t.Errorf("info = %+v", info)
	}
	entries, err := normalize.Entries(page.Entries, "202306010101", info, page.HorseIDs, page.JockeyIDs)
	if err != nil {
		t.Fatalf("normalize.Entries: %v", err)
	}
	if entries[1].Stable != "栗東" || entries[1].Trainer != "調教師丁" || entries[1].JockeyID != "05339" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func testClient(t *testing.T, h http.HandlerFunc, archive Archive) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.HTTP.DBBaseURL = srv.URL
	cfg.HTTP.RaceBaseURL = srv.URL
	cfg.HTTP.Delay = 0
	cfg.HTTP.MaxElapsed = 2 * time.Second
	c := NewClient(cfg, archive)
	c.initialWait = time.Millisecond
	return c, srv
}

func TestClientDecodesEUCJP(t *testing.T) {
	body, err := japanese.EUCJP.NewEncoder().String("<p>東京優駿</p>")
	if err != nil {
		t.Fatal(err)
	}
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/race/202305021211/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html; charset=EUC-JP")
		w.Write([]byte(body))
	}, nil)

	got, err := c.Fetch(context.Background(), c.ResultPage("202305021211"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "<p>東京優駿</p>" {
		t.Errorf("Fetch = %q", got)
	}
}

func TestClientRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   func(error) bool
	}{
		{"retry 503 then ok", []int{503, 503, 200}, 3, func(err error) bool { return err == nil }},
		{"retry 429 then ok", []int{429, 200}, 2, func(err error) bool { return err == nil }},
		{"404 not found", []int{404}, 1, func(err error) bool { return errors.Is(err, models.ErrNotFound) }},
		{"403 permanent", []int{403}, 1, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.Status == 403
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(status)
				w.Write([]byte("ok"))
			}, nil)

			_, err := c.Fetch(context.Background(), c.HistoryPage("2020104567"))
			if !tt.wantErr(err) {
				t.Errorf("Fetch err = %v", err)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

type fakeArchive struct {
	runs     []*store.IngestRun
	payloads map[string][]byte
}

func (f *fakeArchive) StartIngestRun(source, endpoint, pageKey string) (*store.IngestRun, error) {
	run := &store.IngestRun{ID: int64(len(f.runs) + 1), Source: source, Endpoint: endpoint}
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeArchive) CompleteIngestRun(run *store.IngestRun) error { return nil }

func (f *fakeArchive) StoreRawPayload(runID *int64, source, endpoint, pageKey string, payload []byte) (int64, error) {
	if f.payloads == nil {
		f.payloads = make(map[string][]byte)
	}
	f.payloads[endpoint+"/"+pageKey] = payload
	return 1, nil
}

func TestClientGetAudits(t *testing.T) {
	archive := &fakeArchive{}
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>page</html>"))
	}, archive)

	err := c.Get(context.Background(), c.PedigreePage("2020104567"), func(body []byte) (int, int, error) {
		return 3, 1, nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(archive.runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(archive.runs))
	}
	run := archive.runs[0]
	if !run.Success || run.HTTPStatus.Int64 != 200 || run.RecordsStored.Int64 != 3 || run.ParseErrors.Int64 != 1 {
		t.Errorf("run = %+v", run)
	}
	if string(archive.payloads["ped/2020104567"]) != "<html>page</html>" {
		t.Errorf("payload = %q", archive.payloads["ped/2020104567"])
	}

	parseErr := models.NewParseError("x", errors.New("bad"))
	err = c.Get(context.Background(), c.PedigreePage("2020104568"), func([]byte) (int, int, error) {
		return 0, 0, parseErr
	})
	if !models.IsParseError(err) {
		t.Errorf("Get err = %v, want ParseError", err)
	}
	if run := archive.runs[1]; run.Success || !run.ErrorMessage.Valid {
		t.Errorf("failed run = %+v", run)
	}
}

func TestClientWaitHonoursContext(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	c.delay = time.Hour
	c.last = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, c.CardPage("202306010101")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

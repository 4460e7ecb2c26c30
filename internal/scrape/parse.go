package scrape

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lox/keiba/internal/htmlutil"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/normalize"
)

var idRe = regexp.MustCompile(`\d+`)

// ResultPage holds the tables of a finished race.
type ResultPage struct {
	Intro     string
	Results   normalize.Table
	HorseIDs  []string
	JockeyIDs []string
	Returns   normalize.Table
}

// ParseResultPage reads a db race page. Payout tables are optional; a page
// without its result table is models.ErrNotFound.
func ParseResultPage(r io.Reader) (ResultPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ResultPage{}, models.NewParseError("result page", err)
	}
	table := doc.Find(`table[summary="レース結果"]`).First()
	if table.Length() == 0 {
		table = doc.Find("table.race_table_01").First()
	}
	if table.Length() == 0 {
		return ResultPage{}, models.ErrNotFound
	}

	var page ResultPage
	page.Results = readTable(table, func(tr *goquery.Selection) {
		page.HorseIDs = append(page.HorseIDs, linkID(tr, `a[href^="/horse/"]`))
		page.JockeyIDs = append(page.JockeyIDs, linkID(tr, `a[href^="/jockey/"]`))
	})

	var intro []string
	doc.Find("div.data_intro p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		intro = append(intro, strings.TrimSpace(p.Text()))
		return i < 1
	})
	page.Intro = strings.Join(intro, " ")
	page.Returns = payoutTable(doc)
	return page, nil
}

// ParseReturnsPage reads just the payout tables of a race page.
func ParseReturnsPage(r io.Reader) (normalize.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return normalize.Table{}, models.NewParseError("returns page", err)
	}
	t := payoutTable(doc)
	if len(t.Rows) == 0 {
		return normalize.Table{}, models.ErrNotFound
	}
	return t, nil
}

// payoutTable collects pool, selection, payout and popularity rows from both
// the db layout (pay_table_01) and the race layout (Payout_Detail_Table).
// Cells keep one line per <br>.
func payoutTable(doc *goquery.Document) normalize.Table {
	var t normalize.Table
	doc.Find("table.pay_table_01 tr, table.Payout_Detail_Table tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.Find("th").First()
		tds := tr.Find("td")
		if th.Length() == 0 || tds.Length() < 2 {
			return
		}
		row := []string{strings.TrimSpace(th.Text())}
		tds.Each(func(_ int, td *goquery.Selection) {
			row = append(row, cellText(td))
		})
		t.Rows = append(t.Rows, row)
	})
	return t
}

// ParseHistoryPage reads the race history table of a horse profile. The
// table is found by its 日付 and 開催 headers, since an awards table may
// precede it.
func ParseHistoryPage(r io.Reader) (normalize.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return normalize.Table{}, models.NewParseError("history page", err)
	}
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := headerCells(table)
		if slices.Contains(headers, "日付") && slices.Contains(headers, "開催") {
			found = table
			return false
		}
		return true
	})
	if found == nil {
		return normalize.Table{}, models.ErrNotFound
	}
	t := readTable(found, nil)
	if len(t.Rows) == 0 {
		return normalize.Table{}, models.ErrNotFound
	}
	return t, nil
}

// ParsePedigreePage returns the ancestor cells of the blood table in
// document order.
func ParsePedigreePage(r io.Reader) ([]normalize.PedigreeCell, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, models.NewParseError("pedigree page", err)
	}
	table := doc.Find("table.blood_table").First()
	if table.Length() == 0 {
		return nil, models.ErrNotFound
	}
	var cells []normalize.PedigreeCell
	var bad error
	table.Find("td").EachWithBreak(func(i int, td *goquery.Selection) bool {
		span := 1
		if v, ok := td.Attr("rowspan"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				bad = fmt.Errorf("cell %d: rowspan %q", i, v)
				return false
			}
			span = n
		}
		cells = append(cells, normalize.PedigreeCell{Rowspan: span, Text: strings.TrimSpace(td.Text())})
		return true
	})
	if bad != nil {
		return nil, models.NewParseError("pedigree page", bad)
	}
	return cells, nil
}

// CardPage holds a race card.
type CardPage struct {
	Name      string
	Info      string
	Entries   normalize.Table
	HorseIDs  []string
	JockeyIDs []string
}

// ParseRaceCardPage reads a shutuba page.
func ParseRaceCardPage(r io.Reader) (CardPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return CardPage{}, models.NewParseError("card page", err)
	}
	table := doc.Find("table.Shutuba_Table").First()
	if table.Length() == 0 {
		return CardPage{}, models.ErrNotFound
	}

	var page CardPage
	page.Name = strings.TrimSpace(doc.Find("h1.RaceName").First().Text())
	info := []string{strings.TrimSpace(doc.Find("div.RaceData01").First().Text())}
	doc.Find("div.RaceData02 span").Each(func(_ int, s *goquery.Selection) {
		info = append(info, strings.TrimSpace(s.Text()))
	})
	page.Info = strings.Join(info, " ")

	page.Entries.Header = headerCells(table)
	table.Find("tr.HorseList").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		page.Entries.Rows = append(page.Entries.Rows, fit(row, len(page.Entries.Header)))
		page.HorseIDs = append(page.HorseIDs, linkID(tr, "span.HorseName a"))
		page.JockeyIDs = append(page.JockeyIDs, linkID(tr, "td.Jockey a"))
	})
	if len(page.Entries.Rows) == 0 {
		return CardPage{}, models.ErrNotFound
	}
	return page, nil
}

// readTable reads the first row's th cells as the header and every later row
// with td cells as the body. each, if set, sees every body row.
func readTable(table *goquery.Selection, each func(tr *goquery.Selection)) normalize.Table {
	t := normalize.Table{Header: headerCells(table)}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		row := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		t.Rows = append(t.Rows, row)
		if each != nil {
			each(tr)
		}
	})
	return t
}

// headerCells returns the th texts of the first header row, repeating cells
// that span several columns.
func headerCells(table *goquery.Selection) []string {
	var out []string
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		ths := tr.Find("th")
		if ths.Length() == 0 {
			return true
		}
		ths.Each(func(_ int, th *goquery.Selection) {
			text := normalize.NormalizeHeader(th.Text())
			span := 1
			if v, ok := th.Attr("colspan"); ok {
				if n, err := strconv.Atoi(v); err == nil && n > 1 {
					span = n
				}
			}
			for range span {
				out = append(out, text)
			}
		})
		return false
	})
	return out
}

func cellText(td *goquery.Selection) string {
	html, err := td.Html()
	if err != nil {
		return strings.TrimSpace(td.Text())
	}
	return htmlutil.CellText(html)
}

func linkID(tr *goquery.Selection, selector string) string {
	href, ok := tr.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	return idRe.FindString(href)
}

// fit pads or truncates row to n cells.
func fit(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	return append(row, make([]string, n-len(row))...)
}

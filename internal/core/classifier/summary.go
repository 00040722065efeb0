package classifier

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
)

// Observações que não entram nas contas do resumo.
var excludedRemarks = map[string]bool{"INTERBANK": true}

const unlabeled = "(Unlabeled)"

type columns struct {
	date, narr, credit, debit, remark int
}

var (
	creditHeader = regexp.MustCompile(`\bCR(EDIT)?\b`)
	debitHeader  = regexp.MustCompile(`\bDR(EBIT)?\b`)
)

func indexColumns(header []string) (columns, error) {
	find := func(pred func(string) bool) int {
		for i, h := range header {
			if pred(upper(h)) {
				return i
			}
		}
		return -1
	}

	c := columns{
		date: find(func(h string) bool { return strings.HasPrefix(h, "DATE") }),
		narr: find(func(h string) bool { return strings.Contains(h, "NARRATION") }),
	}
	if c.date < 0 || c.narr < 0 {
		return c, ErrHeaderNotFound
	}

	c.credit = find(func(h string) bool { return creditHeader.MatchString(h) || strings.Contains(h, "CREDIT") })
	if c.credit < 0 {
		c.credit = find(func(h string) bool { return strings.Contains(h, "DEPOSIT") })
	}
	c.debit = find(func(h string) bool { return debitHeader.MatchString(h) || strings.Contains(h, "DEBIT") })
	if c.debit < 0 {
		c.debit = find(func(h string) bool { return strings.Contains(h, "WITHDRAWAL") })
	}
	c.remark = indexOf(header, "REMARKS")
	return c, nil
}

// month é a chave de coluna do resumo.
type month struct {
	year int
	mon  time.Month
}

func (m month) before(o month) bool {
	if m.year != o.year {
		return m.year < o.year
	}
	return m.mon < o.mon
}

// label no formato "Apr-24".
func (m month) label() string {
	return fmt.Sprintf("%s-%02d", m.mon.String()[:3], m.year%100)
}

type cellKey struct {
	label string
	month month
}

// pivot acumula valores por observação e mês numa única passada.
type pivot struct {
	months map[month]bool
	keys   []string
	totals map[string]float64
	cells  map[cellKey]float64
	grand  float64
}

func newPivot() *pivot {
	return &pivot{
		months: make(map[month]bool),
		totals: make(map[string]float64),
		cells:  make(map[cellKey]float64),
	}
}

func (p *pivot) add(label string, m month, amount float64) {
	if _, seen := p.totals[label]; !seen {
		p.keys = append(p.keys, label)
	}
	p.totals[label] += amount
	p.cells[cellKey{label, m}] += amount
	p.grand += amount
}

func (p *pivot) sortedMonths() []month {
	out := make([]month, 0, len(p.months))
	for m := range p.months {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

func (p *pivot) table(title string) domain.Table {
	months := p.sortedMonths()

	header := []any{title}
	for _, m := range months {
		header = append(header, m.label())
	}
	header = append(header, "Total", "% Contributions")
	rows := domain.Table{header}

	keys := append([]string(nil), p.keys...)
	sort.SliceStable(keys, func(i, j int) bool { return p.totals[keys[i]] > p.totals[keys[j]] })

	colTotals := make([]float64, len(months))
	for _, k := range keys {
		row := []any{k}
		var total float64
		for i, m := range months {
			v := p.cells[cellKey{k, m}]
			row = append(row, v)
			total += v
			colTotals[i] += v
		}
		pct := 0.0
		if p.grand != 0 {
			pct = total / p.grand
		}
		rows = append(rows, append(row, total, pct))
	}

	last := []any{"Total"}
	var grand float64
	for _, v := range colTotals {
		last = append(last, v)
		grand += v
	}
	return append(rows, append(last, grand, 1.0))
}

func (s *service) Summarize(grid [][]string) (domain.Table, error) {
	if len(grid) == 0 {
		return domain.Table{{SummarySheet}, {"(empty)"}}, nil
	}
	hdr := findHeaderRow(grid)
	if hdr < 0 {
		return nil, ErrHeaderNotFound
	}
	cols, err := indexColumns(grid[hdr])
	if err != nil {
		return nil, err
	}

	inflow, outflow := newPivot(), newPivot()
	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range grid[hdr+1:] {
		d, ok := parseDate(cell(row, cols.date))
		if !ok {
			continue
		}
		m := month{year: d.Year(), mon: d.Month()}
		inflow.months[m] = true
		outflow.months[m] = true

		remark := cell(row, cols.remark)
		if remark != "" && excludedRemarks[strings.ToUpper(remark)] {
			continue
		}
		label := remark
		if label == "" {
			label = cell(row, cols.narr)
		}
		if label == "" {
			label = unlabeled
		}

		if v := parseAmount(cell(row, cols.credit)); v != 0 {
			inflow.add(label, m, v)
		}
		if v := parseAmount(cell(row, cols.debit)); v != 0 {
			outflow.add(label, m, v)
		}
	}

	out := inflow.table("Inflow")
	out = append(out, []any{}, []any{})
	out = append(out, outflow.table("Outflow")...)
	return out, nil
}

func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var (
	dmy        = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	dateLayouts = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"02-Jan-2006",
		"02 Jan 2006",
		"02-Jan-06",
		"02 Jan 06",
	}
)

// parseDate aceita número serial do Excel, DD/MM/AA[AA] e alguns formatos ISO.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 1 || f > 2958465 {
			return time.Time{}, false
		}
		return excelEpoch.AddDate(0, 0, int(f)), true
	}
	if m := dmy.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		d := time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || int(d.Month()) != mon {
			return time.Time{}, false
		}
		return d, true
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

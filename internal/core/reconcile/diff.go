package reconcile

import (
	"math"
	"sort"
	"strings"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
)

// Nomes das abas geradas, na ordem em que entram na planilha.
const (
	SheetBookVsGSTR      = "Book Vs GSTR"
	SheetGSTRVsBook      = "GSTR Vs Book"
	SheetSumFunction     = "Sum Function"
	SheetBillsWise       = "Bills Wise Summary"
	SheetGSTINWise       = "GSTIN Wise Summary"
	SheetTradeWise       = "Trade Name Wise Summary"
	SheetMatchedTaxable  = "Matched Taxable GSTIN Wise"
	SheetPerfectMatches  = "Perfect Match Invoices"
	statusMatch          = "Match"
	statusMissingIn2B    = "Missing in 2B"
	statusMissingInBook  = "Missing in Book"
	statusMismatchPrefix = "Mismatch: "
)

// Clamp zera diferenças dentro da tolerância e preserva o sinal das demais.
func Clamp(diff, eps float64) float64 {
	if math.Abs(diff) <= eps {
		return 0
	}
	return diff
}

// status classifica uma unidade (nota, GSTIN ou nome) pela presença nos dois
// lados e pelas diferenças já tratadas com a tolerância.
func status(inLeft, inRight bool, dInv, dTax, dTaxable float64) string {
	switch {
	case inLeft && !inRight:
		return statusMissingIn2B
	case !inLeft && inRight:
		return statusMissingInBook
	}
	var probs []string
	if dInv != 0 {
		probs = append(probs, "Invoice")
	}
	if dTax != 0 {
		probs = append(probs, "Tax")
	}
	if dTaxable != 0 {
		probs = append(probs, "Taxable")
	}
	if len(probs) > 0 {
		return statusMismatchPrefix + strings.Join(probs, ", ")
	}
	return statusMatch
}

// BuildBookVsGSTR percorre as notas do livro e procura cada uma no GSTR-2B.
func BuildBookVsGSTR(book, gstr []domain.GroupedRow, names map[string]string, eps float64) domain.Table {
	return directional(book, gstr, names, eps, []any{
		"Trade Name",
		"Invoice Number from Purchase Book",
		"Taxable Value from Purchase Book",
		"Taxable Value from GSTR-2B",
		"Difference",
	})
}

// BuildGSTRVsBook percorre as notas do GSTR-2B e procura cada uma no livro.
func BuildGSTRVsBook(gstr, book []domain.GroupedRow, names map[string]string, eps float64) domain.Table {
	return directional(gstr, book, names, eps, []any{
		"Trade Name",
		"Invoice Number from GSTR-2B",
		"Taxable Value from GSTR-2B",
		"Taxable Value from Purchase Book",
		"Difference",
	})
}

func directional(left, right []domain.GroupedRow, names map[string]string, eps float64, header []any) domain.Table {
	other := indexByKey(right)
	rows := domain.Table{header}
	for _, l := range left {
		r := other[l.Key()]
		rows = append(rows, []any{names[l.GSTIN], l.Invoice, l.Taxable, r.Taxable, Clamp(l.Taxable-r.Taxable, eps)})
	}
	return rows
}

// BuildSumFunction mostra os totais de cada lado e a diferença sem tolerância.
func BuildSumFunction(book, gstr []domain.GroupedRow) domain.Table {
	b, g := Totals(book), Totals(gstr)
	return domain.Table{
		{"Particulars", "Invoice Value", "Integrated Tax (IGST)", "Central Tax (CGST)", "State Tax (SGST)", "Taxable Value"},
		{"GST as Per Book Data", b.InvoiceVal, b.IGST, b.CGST, b.SGST, b.Taxable},
		{"GST as Per GSTR-2B", g.InvoiceVal, g.IGST, g.CGST, g.SGST, g.Taxable},
		{"Difference", b.InvoiceVal - g.InvoiceVal, b.IGST - g.IGST, b.CGST - g.CGST, b.SGST - g.SGST, b.Taxable - g.Taxable},
	}
}

var rollupHeader = []any{
	"Book: Invoice Value", "2B: Invoice Value", "Diff: Invoice Value",
	"Book: Total Tax", "2B: Total Tax", "Diff: Total Tax",
	"Book: Taxable", "2B: Taxable", "Diff: Taxable", "Status",
}

// compare monta as colunas de valores e o status de uma unidade.
func compare(a, b domain.Amounts, inLeft, inRight bool, eps float64) []any {
	aTax, bTax := a.TotalTax(), b.TotalTax()
	dInv := Clamp(a.InvoiceVal-b.InvoiceVal, eps)
	dTax := Clamp(aTax-bTax, eps)
	dTaxable := Clamp(a.Taxable-b.Taxable, eps)
	return []any{
		a.InvoiceVal, b.InvoiceVal, dInv,
		aTax, bTax, dTax,
		a.Taxable, b.Taxable, dTaxable,
		status(inLeft, inRight, dInv, dTax, dTaxable),
	}
}

// BuildBillsWise compara nota a nota sobre a união das chaves, ordenada por
// "GSTIN|número".
func BuildBillsWise(book, gstr []domain.GroupedRow, eps float64) domain.Table {
	left, right := indexByKey(book), indexByKey(gstr)
	keys := make([]domain.InvoiceKey, 0, len(left)+len(right))
	for k := range left {
		keys = append(keys, k)
	}
	for k := range right {
		if _, dup := left[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	rows := domain.Table{append([]any{"GSTIN of Supplier", "Invoice Number"}, rollupHeader...)}
	for _, k := range keys {
		l, inLeft := left[k]
		r, inRight := right[k]
		row := append([]any{k.GSTIN, k.Invoice}, compare(domain.AmountsOf(l), domain.AmountsOf(r), inLeft, inRight, eps)...)
		rows = append(rows, row)
	}
	return rows
}

// BuildGSTINWise soma as notas por GSTIN antes de comparar.
func BuildGSTINWise(book, gstr []domain.GroupedRow, eps float64) domain.Table {
	byGSTIN := func(r domain.GroupedRow) string { return r.GSTIN }
	return rollupView(rollup(book, byGSTIN), rollup(gstr, byGSTIN), "GSTIN of Supplier", eps)
}

// BuildTradeWise soma as notas pelo nome comercial resolvido.
func BuildTradeWise(book, gstr []domain.GroupedRow, names map[string]string, eps float64) domain.Table {
	byTrade := func(r domain.GroupedRow) string { return names[r.GSTIN] }
	return rollupView(rollup(book, byTrade), rollup(gstr, byTrade), "Trade Name", eps)
}

func rollupView(left, right map[string]domain.Amounts, label string, eps float64) domain.Table {
	rows := domain.Table{append([]any{label}, rollupHeader...)}
	for _, k := range unionKeys(left, right) {
		a, inLeft := left[k]
		b, inRight := right[k]
		rows = append(rows, append([]any{k}, compare(a, b, inLeft, inRight, eps)...))
	}
	return rows
}

func unionKeys(left, right map[string]domain.Amounts) []string {
	keys := make([]string, 0, len(left)+len(right))
	for k := range left {
		keys = append(keys, k)
	}
	for k := range right {
		if _, dup := left[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type matchedAgg struct {
	count       int
	bookTaxable float64
	gstrTaxable float64
}

// BuildMatchedTaxableByGSTIN considera só as notas presentes nos dois lados
// cujo valor tributável bate dentro da tolerância, somadas por GSTIN, com
// linha de total geral no fim.
func BuildMatchedTaxableByGSTIN(book, gstr []domain.GroupedRow, names map[string]string, eps float64) domain.Table {
	right := indexByKey(gstr)
	agg := make(map[string]matchedAgg)
	for _, l := range book {
		r, ok := right[l.Key()]
		if !ok || Clamp(l.Taxable-r.Taxable, eps) != 0 {
			continue
		}
		a := agg[l.GSTIN]
		a.count++
		a.bookTaxable += l.Taxable
		a.gstrTaxable += r.Taxable
		agg[l.GSTIN] = a
	}

	gstins := make([]string, 0, len(agg))
	for g := range agg {
		gstins = append(gstins, g)
	}
	sort.Strings(gstins)

	rows := domain.Table{{
		"GSTIN of Supplier",
		"Trade Name",
		"Matched Invoices (Taxable)",
		"Book: Taxable (Matched)",
		"2B: Taxable (Matched)",
		"Diff: Taxable (Matched)",
	}}
	var grand matchedAgg
	for _, g := range gstins {
		a := agg[g]
		rows = append(rows, []any{g, names[g], a.count, a.bookTaxable, a.gstrTaxable, a.bookTaxable - a.gstrTaxable})
		grand.count += a.count
		grand.bookTaxable += a.bookTaxable
		grand.gstrTaxable += a.gstrTaxable
	}
	rows = append(rows, []any{})
	rows = append(rows, []any{"Grand Total", "", grand.count, grand.bookTaxable, grand.gstrTaxable, grand.bookTaxable - grand.gstrTaxable})
	return rows
}

// BuildPerfectMatches lista, na ordem do livro, as notas em que valor da nota,
// imposto total e valor tributável batem ao mesmo tempo.
func BuildPerfectMatches(book, gstr []domain.GroupedRow, names map[string]string, eps float64) domain.Table {
	right := indexByKey(gstr)
	rows := domain.Table{{
		"GSTIN of Supplier",
		"Trade Name",
		"Invoice Number",
		"Book: Invoice Value",
		"2B: Invoice Value",
		"Book: Total Tax",
		"2B: Total Tax",
		"Book: Taxable Value",
		"2B: Taxable Value",
		"Match Status",
	}}

	var count int
	var bookTot, gstrTot domain.Amounts
	for _, l := range book {
		r, ok := right[l.Key()]
		if !ok {
			continue
		}
		lTax, rTax := l.TotalTax(), r.TotalTax()
		if Clamp(l.InvoiceVal-r.InvoiceVal, eps) != 0 || Clamp(lTax-rTax, eps) != 0 || Clamp(l.Taxable-r.Taxable, eps) != 0 {
			continue
		}
		rows = append(rows, []any{l.GSTIN, names[l.GSTIN], l.Invoice, l.InvoiceVal, r.InvoiceVal, lTax, rTax, l.Taxable, r.Taxable, "Perfect Match"})
		count++
		bookTot = bookTot.Add(domain.AmountsOf(l))
		gstrTot = gstrTot.Add(domain.AmountsOf(r))
	}

	rows = append(rows, []any{})
	rows = append(rows, []any{
		"Total Matched Invoices", "", count,
		bookTot.InvoiceVal, gstrTot.InvoiceVal,
		bookTot.TotalTax(), gstrTot.TotalTax(),
		bookTot.Taxable, gstrTot.Taxable,
		"",
	})
	return rows
}

// BuildSheets monta todas as abas na ordem de saída.
func BuildSheets(book, gstr []domain.GroupedRow, names map[string]string, eps float64) []domain.Sheet {
	return []domain.Sheet{
		{Name: SheetBookVsGSTR, Rows: BuildBookVsGSTR(book, gstr, names, eps)},
		{Name: SheetGSTRVsBook, Rows: BuildGSTRVsBook(gstr, book, names, eps)},
		{Name: SheetSumFunction, Rows: BuildSumFunction(book, gstr)},
		{Name: SheetBillsWise, Rows: BuildBillsWise(book, gstr, eps)},
		{Name: SheetGSTINWise, Rows: BuildGSTINWise(book, gstr, eps)},
		{Name: SheetTradeWise, Rows: BuildTradeWise(book, gstr, names, eps)},
		{Name: SheetMatchedTaxable, Rows: BuildMatchedTaxableByGSTIN(book, gstr, names, eps)},
		{Name: SheetPerfectMatches, Rows: BuildPerfectMatches(book, gstr, names, eps)},
	}
}

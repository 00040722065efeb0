package domain

import "fmt"

// RawRow é uma linha de planilha como veio do arquivo: nome da coluna -> valor.
type RawRow map[string]any

// CleanRow é a projeção normalizada de uma RawRow.
type CleanRow struct {
	GSTIN       string  `json:"gstin"`
	Invoice     string  `json:"invoice"`
	TradeName   string  `json:"trade_name"`
	Email       string  `json:"email"`
	InvoiceDate string  `json:"invoice_date"`
	InvoiceVal  float64 `json:"invoice_value"`
	IGST        float64 `json:"igst"`
	CGST        float64 `json:"cgst"`
	SGST        float64 `json:"sgst"`
	Taxable     float64 `json:"taxable"`
}

// GroupedRow é uma nota fiscal por (GSTIN, número), com os valores somados.
type GroupedRow struct {
	GSTIN       string  `json:"gstin"`
	Invoice     string  `json:"invoice"`
	InvoiceDate string  `json:"invoice_date"`
	InvoiceVal  float64 `json:"invoice_value"`
	IGST        float64 `json:"igst"`
	CGST        float64 `json:"cgst"`
	SGST        float64 `json:"sgst"`
	Taxable     float64 `json:"taxable"`
}

// Key devolve a chave composta usada nos cruzamentos.
func (g GroupedRow) Key() InvoiceKey {
	return InvoiceKey{GSTIN: g.GSTIN, Invoice: g.Invoice}
}

// TotalTax soma IGST, CGST e SGST.
func (g GroupedRow) TotalTax() float64 {
	return g.IGST + g.CGST + g.SGST
}

// InvoiceKey identifica uma nota: GSTIN do fornecedor + número normalizado.
type InvoiceKey struct {
	GSTIN   string
	Invoice string
}

func (k InvoiceKey) String() string {
	return k.GSTIN + "|" + k.Invoice
}

// Amounts agrupa os cinco campos numéricos de uma nota ou de um total.
type Amounts struct {
	InvoiceVal float64 `json:"invoice_value"`
	IGST       float64 `json:"igst"`
	CGST       float64 `json:"cgst"`
	SGST       float64 `json:"sgst"`
	Taxable    float64 `json:"taxable"`
}

// Add acumula outro conjunto de valores.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		InvoiceVal: a.InvoiceVal + b.InvoiceVal,
		IGST:       a.IGST + b.IGST,
		CGST:       a.CGST + b.CGST,
		SGST:       a.SGST + b.SGST,
		Taxable:    a.Taxable + b.Taxable,
	}
}

// TotalTax soma os três componentes de imposto.
func (a Amounts) TotalTax() float64 {
	return a.IGST + a.CGST + a.SGST
}

// AmountsOf extrai os valores de uma GroupedRow.
func AmountsOf(g GroupedRow) Amounts {
	return Amounts{InvoiceVal: g.InvoiceVal, IGST: g.IGST, CGST: g.CGST, SGST: g.SGST, Taxable: g.Taxable}
}

// MismatchKind classifica a divergência de uma nota.
type MismatchKind int

const (
	MismatchMissingInStatement MismatchKind = 1 // Nota só existe no livro de compras.
	MismatchMissingInBook      MismatchKind = 2 // Nota só existe no GSTR-2B.
	MismatchAmount             MismatchKind = 3 // Nota nos dois lados com valor tributável diferente.
)

func (k MismatchKind) String() string {
	switch k {
	case MismatchMissingInStatement:
		return "Missing in 2B"
	case MismatchMissingInBook:
		return "Missing in Book"
	case MismatchAmount:
		return "Amount Mismatch"
	default:
		return fmt.Sprintf("MismatchKind(%d)", int(k))
	}
}

// MarshalText permite que o tipo saia como texto no JSON.
func (k MismatchKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText aceita os mesmos textos gerados por MarshalText.
func (k *MismatchKind) UnmarshalText(text []byte) error {
	for _, kind := range []MismatchKind{MismatchMissingInStatement, MismatchMissingInBook, MismatchAmount} {
		if string(text) == kind.String() {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("tipo de divergência desconhecido: %q", text)
}

// MismatchEntry é uma nota divergente dentro de um MismatchRecord.
type MismatchEntry struct {
	Invoice     string       `json:"invoice_number"`
	InvoiceDate string       `json:"invoice_date"`
	Kind        MismatchKind `json:"kind"`
	Book        Amounts      `json:"book"`
	Statement   Amounts      `json:"gstr"`
	Difference  float64      `json:"difference"`
}

// MismatchRecord reúne todas as divergências de um fornecedor para notificação.
type MismatchRecord struct {
	GSTIN     string          `json:"gstin"`
	TradeName string          `json:"trade_name"`
	Email     string          `json:"email"`
	Entries   []MismatchEntry `json:"mismatched_invoices"`
}

// TotalDifference soma as diferenças de valor tributável das notas.
func (r MismatchRecord) TotalDifference() float64 {
	var total float64
	for _, e := range r.Entries {
		total += e.Difference
	}
	return total
}

// Table é uma aba de saída: cabeçalho + linhas (+ rodapés opcionais).
type Table [][]any

// Sheet é uma tabela nomeada, na ordem em que deve aparecer na planilha.
type Sheet struct {
	Name string
	Rows Table
}

// AnomalyStats conta as anomalias toleradas que a normalização corrigiu em silêncio.
type AnomalyStats struct {
	UnparseableNumbers int `json:"unparseable_numbers"`
	UnparseableDates   int `json:"unparseable_dates"`
	MissingNames       int `json:"missing_names"`
	MissingContacts    int `json:"missing_contacts"`
	MalformedGSTINs    int `json:"malformed_gstins"`
}

// Total devolve a soma de todas as anomalias.
func (a AnomalyStats) Total() int {
	return a.UnparseableNumbers + a.UnparseableDates + a.MissingNames + a.MissingContacts + a.MalformedGSTINs
}

// Add soma dois contadores.
func (a AnomalyStats) Add(b AnomalyStats) AnomalyStats {
	return AnomalyStats{
		UnparseableNumbers: a.UnparseableNumbers + b.UnparseableNumbers,
		UnparseableDates:   a.UnparseableDates + b.UnparseableDates,
		MissingNames:       a.MissingNames + b.MissingNames,
		MissingContacts:    a.MissingContacts + b.MissingContacts,
		MalformedGSTINs:    a.MalformedGSTINs + b.MalformedGSTINs,
	}
}

// RunStats resume uma execução de conciliação.
type RunStats struct {
	BookRows          int          `json:"book_rows"`
	StatementRows     int          `json:"gstr_rows"`
	BookInvoices      int          `json:"book_invoices"`
	StatementInvoices int          `json:"gstr_invoices"`
	Anomalies         AnomalyStats `json:"anomalies"`
	SkippedNoContact  []string     `json:"skipped_no_contact"`
	Unattributed      int          `json:"unattributed_mismatches"` // notas divergentes sem GSTIN
}

// Result é o produto de uma execução de conciliação.
type Result struct {
	RunID      string           `json:"run_id"`
	Sheets     []Sheet          `json:"-"`
	Mismatches []MismatchRecord `json:"mismatches"`
	Stats      RunStats         `json:"stats"`
}

// SheetMap devolve as abas indexadas pelo nome.
func (r *Result) SheetMap() map[string]Table {
	m := make(map[string]Table, len(r.Sheets))
	for _, s := range r.Sheets {
		m[s.Name] = s.Rows
	}
	return m
}

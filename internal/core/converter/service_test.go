package converter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/charmap"
)

// buildWorkbook monta um xlsx em memória com as abas na ordem dada.
func buildWorkbook(t *testing.T, sheets ...domain.Sheet) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for r, row := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			values := row
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestReadSheetsFromXLSX(t *testing.T) {
	svc := NewService(nil)
	buf := buildWorkbook(t,
		domain.Sheet{Name: "Zoho Data", Rows: domain.Table{
			{"GSTIN of Supplier", "Invoice Number", "Taxable Value"},
			{"27AAPFU0939F1ZV", "INV-007", 1000.5},
			{},
			{"29AAGCB7383J1Z4", "007", 20},
		}},
		domain.Sheet{Name: "GSTR-2B", Rows: domain.Table{
			{"GSTIN of Supplier", "Invoice Number"},
			{"27AAPFU0939F1ZV", "INV7"},
		}},
	)

	tables, err := svc.ReadSheets(buf, "compras.xlsx", "Zoho Data", "gstr-2b")
	if err != nil {
		t.Fatalf("ReadSheets falhou: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("esperava 2 tabelas, obteve %d", len(tables))
	}

	book := tables[0]
	if len(book) != 2 {
		t.Fatalf("linha vazia deveria ser descartada; obteve %d linhas", len(book))
	}
	if book[0]["Invoice Number"] != "INV-007" || book[0]["Taxable Value"] != "1000.5" {
		t.Errorf("primeira linha inesperada: %v", book[0])
	}
	if book[1]["Invoice Number"] != "007" {
		t.Errorf("texto numérico deveria chegar como veio: %v", book[1]["Invoice Number"])
	}
	if tables[1][0]["Invoice Number"] != "INV7" {
		t.Errorf("aba do 2B inesperada: %v", tables[1])
	}
}

func TestResolveSheet(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := &service{logger: zap.New(core)}
	wb := &workbook{names: []string{"Zoho Data", "GSTR-2B"}}

	cases := []struct {
		want string
		got  string
	}{
		{"", "Zoho Data"},
		{"GSTR-2B", "GSTR-2B"},
		{"zoho data", "Zoho Data"},
		{"ZOHO-DATA", "Zoho Data"},
		{"gstr 2b", "GSTR-2B"},
	}
	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			got, err := svc.resolveSheet(wb, c.want)
			if err != nil || got != c.got {
				t.Errorf("resolveSheet(%q) = (%q, %v), esperado %q", c.want, got, err, c.got)
			}
		})
	}
	if logs.Len() != 0 {
		t.Errorf("casamentos exatos ou normalizados não deveriam gerar aviso")
	}

	got, err := svc.resolveSheet(wb, "Zoho Dat")
	if err != nil || got != "Zoho Data" {
		t.Errorf("busca aproximada = (%q, %v), esperado Zoho Data", got, err)
	}
	if logs.Len() != 1 {
		t.Errorf("busca aproximada deveria avisar, obteve %d logs", logs.Len())
	}

	if _, err := svc.resolveSheet(wb, "QQQ"); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("esperava ErrSheetNotFound, obteve %v", err)
	}
}

func TestReadCSVWindows1252(t *testing.T) {
	svc := NewService(nil)
	content, err := charmap.Windows1252.NewEncoder().String("Descrição;Valor\nCafé;10\n")
	if err != nil {
		t.Fatalf("falha ao codificar: %v", err)
	}

	grid, name, err := svc.ReadGrid(strings.NewReader(content), "extrato.csv", "qualquer")
	if err != nil {
		t.Fatalf("ReadGrid falhou: %v", err)
	}
	if name != "extrato" {
		t.Errorf("nome da aba = %q, esperado extrato", name)
	}
	if grid[0][0] != "Descrição" || grid[1][0] != "Café" || grid[1][1] != "10" {
		t.Errorf("grade inesperada: %v", grid)
	}
}

func TestReadCSVUTF8WithComma(t *testing.T) {
	svc := NewService(nil)
	data := "\xef\xbb\xbfGSTIN of Supplier,Invoice Number\n27AAPFU0939F1ZV,A-01\n"

	tables, err := svc.ReadSheets(strings.NewReader(data), "book.csv", "Zoho Data")
	if err != nil {
		t.Fatalf("ReadSheets falhou: %v", err)
	}
	rows := tables[0]
	if len(rows) != 1 || rows[0]["GSTIN of Supplier"] != "27AAPFU0939F1ZV" {
		t.Errorf("BOM ou separador não tratados: %v", rows)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.ReadSheets(strings.NewReader("x"), "notas.pdf", "Zoho Data"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("esperava ErrUnsupportedFormat, obteve %v", err)
	}
	if _, err := svc.ReadSheets(strings.NewReader("não é zip"), "notas.xlsx", "Zoho Data"); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("esperava ErrInvalidFile, obteve %v", err)
	}
}

func TestWriteWorkbookRoundTrip(t *testing.T) {
	svc := NewService(nil)
	sheets := []domain.Sheet{
		{Name: "Book Vs GSTR", Rows: domain.Table{{"Trade Name", "Difference"}, {"ACME", 20.0}}},
		{Name: "Perfect Match Invoices", Rows: domain.Table{{"GSTIN of Supplier"}, {}, {"Total Matched Invoices"}}},
	}

	out, err := svc.WriteWorkbook(sheets)
	if err != nil {
		t.Fatalf("WriteWorkbook falhou: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("xlsx gerado não abre: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Book Vs GSTR" || got[1] != "Perfect Match Invoices" {
		t.Errorf("abas fora de ordem: %v", got)
	}
	v, _ := f.GetCellValue("Book Vs GSTR", "B2")
	if v != "20" {
		t.Errorf("B2 = %q, esperado 20", v)
	}
	v, _ = f.GetCellValue("Perfect Match Invoices", "A3")
	if v != "Total Matched Invoices" {
		t.Errorf("linha em branco deveria ser mantida; A3 = %q", v)
	}

	if _, err := svc.WriteWorkbook(nil); err == nil {
		t.Error("sem abas deveria falhar")
	}
}

func TestReadSheetsSingleSheetWorkbook(t *testing.T) {
	svc := NewService(nil)
	buf := buildWorkbook(t, domain.Sheet{Name: "Export", Rows: domain.Table{
		{"GSTIN of Supplier", "Invoice Number"},
		{"27AAPFU0939F1ZV", "A1"},
	}})

	tables, err := svc.ReadSheets(buf, "livro.xlsx", "Zoho Data")
	if err != nil {
		t.Fatalf("aba única deveria atender a qualquer nome: %v", err)
	}
	if len(tables[0]) != 1 || tables[0][0]["Invoice Number"] != "A1" {
		t.Errorf("linhas inesperadas: %v", tables[0])
	}

	buf = buildWorkbook(t, domain.Sheet{Name: "Export", Rows: domain.Table{{"GSTIN of Supplier"}}})
	if _, err := svc.ReadSheets(buf, "tudo.xlsx", "Zoho Data", "GSTR-2B"); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("dois nomes na mesma aba deveriam falhar, obteve %v", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LuisEduardoPedra/gstrecon/internal/api/handlers"
	"github.com/LuisEduardoPedra/gstrecon/internal/config"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/notify"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/reconcile"
	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type fakeNotifier struct {
	got []domain.MismatchRecord
}

func (f *fakeNotifier) Dispatch(_ context.Context, records []domain.MismatchRecord) notify.Summary {
	f.got = records
	return notify.Summary{TotalClients: len(records), EmailsSent: len(records)}
}

type upload struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(f.data)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var header = []any{"GSTIN of Supplier", "Trade Name", "Email", "Invoice Number", "Invoice Date",
	"Invoice Value", "Integrated Tax (IGST)", "Central Tax (CGST)", "State Tax (SGST)", "Taxable Value"}

func bookSheet() domain.Sheet {
	return domain.Sheet{Name: "Zoho Data", Rows: domain.Table{
		header,
		{"27AAPFU0939F1ZV", "Acme", "acme@example.com", "INV-1", "01/04/2024", 1180, 180, 0, 0, 1000},
		{"27AAPFU0939F1ZV", "Acme", "", "INV-2", "02/04/2024", 590, 90, 0, 0, 500},
	}}
}

func gstrSheet() domain.Sheet {
	return domain.Sheet{Name: "GSTR-2B", Rows: domain.Table{
		header,
		{"27AAPFU0939F1ZV", "ACME", "", "INV1", "01/04/2024", 1180, 180, 0, 0, 1000},
	}}
}

func xlsx(t *testing.T, sheets ...domain.Sheet) []byte {
	t.Helper()
	out, err := converter.NewService(nil).WriteWorkbook(sheets)
	if err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	return out
}

func newTestRouter(notifier notify.Service, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	conv := converter.NewService(nil)
	return NewRouter(Options{
		Reconcile:      handlers.NewReconcileHandler(conv, reconcile.NewService(nil), notifier, cfg.Reconcile, nil),
		Bank:           handlers.NewBankHandler(conv, classifier.NewService(nil), nil),
		MaxUploadBytes: maxUpload,
		Version:        "test",
	})
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(nil, 0).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"UP"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestReconcileWorkbook(t *testing.T) {
	router := newTestRouter(nil, 0)
	req := multipartRequest(t, "/api/v1/reconcile",
		[]upload{{"file", "periodo.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Recon-Mismatches"); got != "1" {
		t.Errorf("X-Recon-Mismatches = %q, esperado 1", got)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "reconciliation_output.xlsx") {
		t.Errorf("Content-Disposition inesperado: %q", w.Header().Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("resposta não é xlsx: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) != 8 || sheets[0] != reconcile.SheetBookVsGSTR || sheets[7] != reconcile.SheetPerfectMatches {
		t.Errorf("abas inesperadas: %v", sheets)
	}
}

func TestMismatchesWithSeparateFiles(t *testing.T) {
	router := newTestRouter(nil, 0)
	gstrCSV := "GSTIN of Supplier;Trade Name;Invoice Number;Taxable Value\n27AAPFU0939F1ZV;ACME;INV1;1000\n"
	req := multipartRequest(t, "/api/v1/reconcile/mismatches", []upload{
		{"bookFile", "livro.xlsx", xlsx(t, bookSheet())},
		{"gstrFile", "gstr.csv", []byte(gstrCSV)},
	}, map[string]string{"eps": "0"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		RunID      string `json:"run_id"`
		Mismatches []struct {
			GSTIN   string `json:"gstin"`
			Email   string `json:"email"`
			Entries []struct {
				Invoice string `json:"invoice_number"`
				Kind    string `json:"kind"`
			} `json:"mismatched_invoices"`
		} `json:"mismatches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON inválido: %v", err)
	}
	if body.RunID == "" || len(body.Mismatches) != 1 {
		t.Fatalf("resposta inesperada: %s", w.Body.String())
	}
	m := body.Mismatches[0]
	if m.Email != "acme@example.com" || len(m.Entries) != 1 || m.Entries[0].Invoice != "INV2" || m.Entries[0].Kind != "Missing in 2B" {
		t.Errorf("divergência inesperada: %+v", m)
	}
}

func TestReconcileBadRequests(t *testing.T) {
	router := newTestRouter(nil, 0)
	noColumns := domain.Sheet{Name: "GSTR-2B", Rows: domain.Table{{"Foo", "Bar"}, {"1", "2"}}}

	cases := map[string]*http.Request{
		"sem arquivo": multipartRequest(t, "/api/v1/reconcile", nil, map[string]string{"eps": "10"}),
		"eps inválido": multipartRequest(t, "/api/v1/reconcile",
			[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, map[string]string{"eps": "-1"}),
		"eps NaN": multipartRequest(t, "/api/v1/reconcile",
			[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, map[string]string{"eps": "NaN"}),
		"eps infinito": multipartRequest(t, "/api/v1/reconcile",
			[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, map[string]string{"eps": "+Inf"}),
		"formato": multipartRequest(t, "/api/v1/reconcile", []upload{{"file", "a.pdf", []byte("%PDF")}}, nil),
		"colunas": multipartRequest(t, "/api/v1/reconcile",
			[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), noColumns)}}, nil),
		"sem gstrFile": multipartRequest(t, "/api/v1/reconcile/mismatches",
			[]upload{{"bookFile", "a.xlsx", xlsx(t, bookSheet())}}, nil),
		"não é multipart": httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", strings.NewReader("x")),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status %d, esperado 400: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Errorf("corpo sem campo error: %s", w.Body.String())
			}
		})
	}
}

func TestNotify(t *testing.T) {
	req := func() *http.Request {
		return multipartRequest(t, "/api/v1/notify",
			[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, nil)
	}

	w := httptest.NewRecorder()
	newTestRouter(nil, 0).ServeHTTP(w, req())
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("sem notificador deveria dar 503, obteve %d", w.Code)
	}

	fake := &fakeNotifier{}
	w = httptest.NewRecorder()
	newTestRouter(fake, 0).ServeHTTP(w, req())
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(fake.got) != 1 || fake.got[0].GSTIN != "27AAPFU0939F1ZV" {
		t.Errorf("notificador recebeu %+v", fake.got)
	}
	if !strings.Contains(w.Body.String(), `"emailsSent":1`) {
		t.Errorf("resumo inesperado: %s", w.Body.String())
	}
}

func TestBankClassify(t *testing.T) {
	statement := domain.Sheet{Name: "Extrato", Rows: domain.Table{
		{"Date", "Narration", "Debit", "Credit"},
		{"01/04/2024", "NEFT-BHARTI AIRTEL LIMITED", "100", ""},
		{"02/04/2024", "RANDOM SHOP", "", "50"},
	}}
	req := multipartRequest(t, "/api/v1/bank/classify", []upload{{"file", "extrato.xlsx", xlsx(t, statement)}}, nil)

	w := httptest.NewRecorder()
	newTestRouter(nil, 0).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Bank-Classified") != "1" || w.Header().Get("X-Bank-Unmatched") != "1" {
		t.Errorf("cabeçalhos inesperados: %v", w.Header())
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("resposta não é xlsx: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Extrato" || got[1] != classifier.SummarySheet {
		t.Errorf("abas inesperadas: %v", got)
	}
	if v, _ := f.GetCellValue("Extrato", "E2"); v != classifier.DivisionTSG {
		t.Errorf("E2 = %q, esperado %s", v, classifier.DivisionTSG)
	}

	w = httptest.NewRecorder()
	newTestRouter(nil, 0).ServeHTTP(w, multipartRequest(t, "/api/v1/bank/classify",
		[]upload{{"file", "x.xlsx", xlsx(t, domain.Sheet{Name: "S", Rows: domain.Table{{"a", "b"}}})}}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("extrato sem cabeçalho deveria dar 400, obteve %d", w.Code)
	}
}

func TestUploadLimit(t *testing.T) {
	req := multipartRequest(t, "/api/v1/reconcile",
		[]upload{{"file", "a.xlsx", xlsx(t, bookSheet(), gstrSheet())}}, nil)
	w := httptest.NewRecorder()
	newTestRouter(nil, 64).ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d, esperado 413", w.Code)
	}
}

package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatINR(t *testing.T) {
	cases := map[string]string{
		"0":           "₹0.00",
		"999.999":     "₹1,000.00",
		"1234567.5":   "₹12,34,567.50",
		"123456789.1": "₹12,34,56,789.10",
		"-50000":      "-₹50,000.00",
		"100000":      "₹1,00,000.00",
	}
	for in, want := range cases {
		if got := FormatINR(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatINR(%s) = %s, esperado %s", in, got, want)
		}
	}
}

func sampleRecord() domain.MismatchRecord {
	return domain.MismatchRecord{
		GSTIN:     "27AAPFU0939F1ZV",
		TradeName: "Acme | Traders",
		Email:     "acme@example.com",
		Entries: []domain.MismatchEntry{
			{
				Invoice:     "INV/1",
				InvoiceDate: "01/04/2024",
				Kind:        domain.MismatchAmount,
				Book:        domain.Amounts{Taxable: 1500},
				Statement:   domain.Amounts{Taxable: 1000},
				Difference:  500,
			},
			{
				Invoice:    "INV/2",
				Kind:       domain.MismatchMissingInBook,
				Statement:  domain.Amounts{Taxable: 200000},
				Difference: -200000,
			},
		},
	}
}

func TestRender(t *testing.T) {
	id := Identity{
		FromAddress:  "gst@corp.example",
		Organization: "Corp",
		ContactEmail: "accounts@corp.example",
		CC:           []string{"Accounts@corp.example", "audit@corp.example"},
	}

	msg, err := Render(sampleRecord(), id)
	if err != nil {
		t.Fatalf("Render falhou: %v", err)
	}

	if msg.Subject != "GST Reconciliation Discrepancy - Acme | Traders (27AAPFU0939F1ZV)" {
		t.Errorf("assunto inesperado: %q", msg.Subject)
	}
	if msg.To != "acme@example.com" || msg.ID == "" || msg.GSTIN != "27AAPFU0939F1ZV" {
		t.Errorf("cabeçalhos inesperados: %+v", msg)
	}
	if len(msg.CC) != 2 || msg.CC[0] != "Accounts@corp.example" {
		t.Errorf("cópia deveria remover duplicados ignorando caixa: %v", msg.CC)
	}

	for _, want := range []string{
		`Dear Acme \| Traders`,
		"| INV/1 | 01/04/2024 | Amount Mismatch | ₹1,500.00 | ₹1,000.00 | ₹500.00 (Excess) |",
		"| INV/2 | - | Missing in Book | ₹0.00 | ₹2,00,000.00 | ₹2,00,000.00 (Short) |",
		"**Total Difference:** ₹1,99,500.00 (Short)",
		"**Response Deadline:** 7 days",
		"accounts@corp.example",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("texto deveria conter %q:\n%s", want, msg.Text)
		}
	}

	for _, want := range []string{"<table>", "<td>INV/1</td>", "<title>GST Reconciliation Discrepancy - Acme | Traders"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML deveria conter %q:\n%s", want, msg.HTML)
		}
	}
}

func TestRenderWithoutEmail(t *testing.T) {
	rec := sampleRecord()
	rec.Email = ""
	if _, err := Render(rec, Identity{}); err == nil {
		t.Error("esperava erro para fornecedor sem e-mail")
	}
}

type fakeSender struct {
	mu       sync.Mutex
	failures map[string]int
	sent     []Message
	calls    map[string]int
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[msg.To]++
	if f.failures[msg.To] > 0 {
		f.failures[msg.To]--
		return errors.New("smtp indisponível")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestDispatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	ok := sampleRecord()
	flaky := sampleRecord()
	flaky.GSTIN, flaky.Email = "29AAACR5055K1Z5", "flaky@example.com"
	broken := sampleRecord()
	broken.GSTIN, broken.Email = "07AAACB1234C1Z1", "broken@example.com"

	sender := &fakeSender{failures: map[string]int{"flaky@example.com": 1, "broken@example.com": 10}}
	svc := NewService(sender, Identity{}, DispatchConfig{Concurrency: 2, MaxRetries: 3}, zap.New(core))

	sum := svc.Dispatch(context.Background(), []domain.MismatchRecord{ok, flaky, broken})

	if sum.TotalClients != 3 || sum.EmailsSent != 2 || sum.EmailsFailed != 1 || sum.MismatchesCount != 6 {
		t.Errorf("resumo inesperado: %+v", sum)
	}
	if sum.Details[1].GSTIN != "29AAACR5055K1Z5" || !sum.Details[1].Success || sum.Details[1].Attempts != 2 {
		t.Errorf("segundo envio deveria ter sucesso na 2ª tentativa: %+v", sum.Details[1])
	}
	if d := sum.Details[2]; d.Success || d.Attempts != 3 || !strings.Contains(d.Error, "smtp indisponível") {
		t.Errorf("terceiro envio deveria falhar após 3 tentativas: %+v", d)
	}
	if sender.calls["broken@example.com"] != 3 {
		t.Errorf("esperava 3 chamadas para o endereço quebrado, obteve %d", sender.calls["broken@example.com"])
	}
	if n := logs.FilterMessage("falha no envio, nova tentativa").Len(); n != 4 {
		t.Errorf("esperava 4 avisos de falha, obteve %d", n)
	}
	if n := logs.FilterMessage("e-mail não enviado").Len(); n != 1 {
		t.Errorf("esperava 1 erro final, obteve %d", n)
	}
	if len(sum.Recommendations) == 0 {
		t.Error("deveria haver recomendações")
	}
}

func TestDispatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &fakeSender{}
	svc := NewService(sender, Identity{}, DispatchConfig{MaxRetries: 2, RatePerSecond: 1}, nil)
	sum := svc.Dispatch(ctx, []domain.MismatchRecord{sampleRecord()})

	if sum.EmailsFailed != 1 || len(sender.sent) != 0 {
		t.Errorf("contexto cancelado não deveria enviar: %+v", sum)
	}
}

func TestDispatchEmpty(t *testing.T) {
	sum := NewService(&fakeSender{}, Identity{}, DispatchConfig{}, nil).Dispatch(context.Background(), nil)
	if sum.TotalClients != 0 || len(sum.Details) != 0 || len(sum.Recommendations) != 1 {
		t.Errorf("resumo vazio inesperado: %+v", sum)
	}
}

func TestBackoff(t *testing.T) {
	if got := backoff(100*time.Millisecond, 1); got != 100*time.Millisecond {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := backoff(100*time.Millisecond, 3); got != 400*time.Millisecond {
		t.Errorf("backoff(3) = %v", got)
	}
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	msg, _ := Render(sampleRecord(), Identity{})
	if err := NewLogSender(zap.New(core)).Send(context.Background(), msg); err != nil {
		t.Fatalf("LogSender falhou: %v", err)
	}
	if logs.FilterMessage("simulação de envio").Len() != 1 {
		t.Error("LogSender deveria registrar a mensagem")
	}
}

func TestNewSMTPSender(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}, Identity{FromAddress: "a@b.c"}); !errors.Is(err, ErrSMTPNotConfigured) {
		t.Errorf("esperava ErrSMTPNotConfigured, obteve %v", err)
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}, Identity{FromAddress: "a@b.c", FromName: "GST"})
	if err != nil {
		t.Fatalf("NewSMTPSender falhou: %v", err)
	}
	if s.cfg.Port != 587 {
		t.Errorf("porta padrão deveria ser 587, obteve %d", s.cfg.Port)
	}
	msg, _ := Render(sampleRecord(), Identity{})
	if _, err := s.build(msg); err != nil {
		t.Errorf("build falhou: %v", err)
	}
}

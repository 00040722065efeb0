package notify

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Identity reúne os dados de quem envia as notificações.
type Identity struct {
	FromAddress  string   `yaml:"from_address" json:"from_address"`
	FromName     string   `yaml:"from_name" json:"from_name"`
	Organization string   `yaml:"organization" json:"organization"`
	Department   string   `yaml:"department" json:"department"`
	ContactEmail string   `yaml:"contact_email" json:"contact_email"`
	ContactPhone string   `yaml:"contact_phone" json:"contact_phone"`
	ResponseDays int      `yaml:"response_days" json:"response_days"`
	CC           []string `yaml:"cc" json:"cc"`
	BCC          []string `yaml:"bcc" json:"bcc"`
}

// Message é um e-mail pronto para envio.
type Message struct {
	ID      string
	GSTIN   string
	To      string
	CC      []string
	BCC     []string
	Subject string
	Text    string
	HTML    string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render monta o e-mail de divergências de um fornecedor. O texto é Markdown e
// o HTML é a renderização dele.
func Render(rec domain.MismatchRecord, id Identity) (Message, error) {
	if rec.Email == "" {
		return Message{}, fmt.Errorf("fornecedor %s sem e-mail", rec.GSTIN)
	}

	text := renderMarkdown(rec, id)

	var body bytes.Buffer
	if err := markdown.Convert([]byte(text), &body); err != nil {
		return Message{}, fmt.Errorf("erro ao gerar o HTML: %w", err)
	}

	subject := fmt.Sprintf("GST Reconciliation Discrepancy - %s (%s)", rec.TradeName, rec.GSTIN)
	return Message{
		ID:      uuid.NewString(),
		GSTIN:   rec.GSTIN,
		To:      rec.Email,
		CC:      withContact(id.CC, id.ContactEmail),
		BCC:     id.BCC,
		Subject: subject,
		Text:    text,
		HTML:    wrapHTML(subject, body.String()),
	}, nil
}

func renderMarkdown(rec domain.MismatchRecord, id Identity) string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format, args...) }

	w("# GST Reconciliation Notice\n\n")
	w("Dear %s,\n\n", escapeMD(rec.TradeName))
	w("During our monthly GST reconciliation process, we have identified discrepancies between your "+
		"submitted invoices and our GSTR-2B records for GSTIN: **%s**.\n\n", escapeMD(rec.GSTIN))

	w("**Summary of Mismatches:**\n\n")
	w("| Invoice Number | Invoice Date | Issue | Book Value (₹) | GSTR-2B Value (₹) | Difference (₹) |\n")
	w("|---|---|---|---:|---:|---:|\n")
	total := decimal.Zero
	for _, e := range rec.Entries {
		diff := amount(e.Difference)
		total = total.Add(diff)
		date := e.InvoiceDate
		if date == "" {
			date = "-"
		}
		w("| %s | %s | %s | %s | %s | %s |\n",
			escapeMD(e.Invoice), escapeMD(date), e.Kind,
			FormatINR(amount(e.Book.Taxable)), FormatINR(amount(e.Statement.Taxable)),
			describeDiff(diff))
	}
	w("\n**Total Difference:** %s\n\n", describeDiff(total))

	w("**Required Action:**\n\n")
	w("1. Please verify the invoice details mentioned above\n")
	w("2. Check your GSTR-2B for the corresponding period\n")
	w("3. Provide clarification or corrected documents if needed\n")
	w("4. Reply to this email with your confirmation or corrections\n\n")

	days := id.ResponseDays
	if days <= 0 {
		days = 7
	}
	w("**Response Deadline:** %d days from the date of this email\n\n", days)

	if contact := contactLine(id); contact != "" {
		w("If you have already resolved these discrepancies or have any questions, please contact %s.\n\n", contact)
	}

	w("Best regards,  \n")
	dept := id.Department
	if dept == "" {
		dept = "Accounts Department"
	}
	w("**%s**", escapeMD(dept))
	if id.Organization != "" {
		w("  \n%s", escapeMD(id.Organization))
	}
	w("\n")
	return b.String()
}

// describeDiff mostra o valor absoluto com (Excess) quando o livro está acima
// do GSTR-2B e (Short) caso contrário.
func describeDiff(d decimal.Decimal) string {
	label := "(Short)"
	if d.IsPositive() {
		label = "(Excess)"
	}
	return FormatINR(d.Abs()) + " " + label
}

func contactLine(id Identity) string {
	var parts []string
	if id.ContactEmail != "" {
		parts = append(parts, "our accounts team at "+escapeMD(id.ContactEmail))
	}
	if id.ContactPhone != "" {
		parts = append(parts, "call "+escapeMD(id.ContactPhone))
	}
	return strings.Join(parts, " or ")
}

func withContact(cc []string, contact string) []string {
	out := make([]string, 0, len(cc)+1)
	seen := make(map[string]bool)
	for _, addr := range append(append([]string(nil), cc...), contact) {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, `|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`",
	`[`, `\[`, `]`, `\]`, `<`, `\<`, `>`, `\>`, `#`, `\#`,
)

func escapeMD(s string) string {
	return mdEscaper.Replace(s)
}

func wrapHTML(title, body string) string {
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" + html.EscapeString(title) +
		"</title>\n<style>body{font-family:Arial,sans-serif;line-height:1.6;color:#333}" +
		"table{border-collapse:collapse;margin:20px 0}th,td{border:1px solid #ddd;padding:8px}" +
		"th{background-color:#3498db;color:#fff;text-align:left}</style>\n</head>\n<body>\n" +
		body + "</body>\n</html>\n"
}

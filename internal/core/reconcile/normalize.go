package reconcile

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
)

// Normalized é o resultado da normalização de uma tabela.
type Normalized struct {
	Rows         []domain.CleanRow
	NameByGSTIN  map[string]string
	EmailByGSTIN map[string]string
	Anomalies    domain.AnomalyStats
}

// Normalize limpa as linhas brutas numa única passada e, no mesmo laço, monta a
// votação de nomes por GSTIN e o mapa de e-mails (o primeiro não vazio vence).
// Nunca falha: valor ilegível vira zero ou texto vazio e entra nas anomalias.
func Normalize(rows []domain.RawRow, cols Columns) Normalized {
	out := Normalized{
		Rows:         make([]domain.CleanRow, 0, len(rows)),
		EmailByGSTIN: make(map[string]string),
	}
	votes := newNameVotes()
	lookup := newFieldLookup()

	for _, r := range rows {
		get := func(col string) any { return lookup.get(r, col) }

		row := domain.CleanRow{
			GSTIN:     cleanGSTIN(get(cols.GSTIN)),
			Invoice:   cleanInvoice(get(cols.InvoiceNumber)),
			TradeName: cleanTrade(get(cols.TradeName)),
			Email:     cleanEmail(get(cols.Email)),
		}

		date, ok := parseInvoiceDate(get(cols.InvoiceDate))
		if !ok {
			out.Anomalies.UnparseableDates++
		}
		row.InvoiceDate = date

		for _, f := range []struct {
			dst *float64
			col string
		}{
			{&row.InvoiceVal, cols.InvoiceValue},
			{&row.IGST, cols.IGST},
			{&row.CGST, cols.CGST},
			{&row.SGST, cols.SGST},
			{&row.Taxable, cols.Taxable},
		} {
			v, ok := toNum(get(f.col))
			if !ok {
				out.Anomalies.UnparseableNumbers++
			}
			*f.dst = v
		}

		if row.TradeName == "" {
			out.Anomalies.MissingNames++
		}
		if row.Email == "" {
			out.Anomalies.MissingContacts++
		}
		if row.GSTIN != "" && !ValidGSTIN(row.GSTIN) {
			out.Anomalies.MalformedGSTINs++
		}

		out.Rows = append(out.Rows, row)

		if row.GSTIN != "" {
			votes.add(row.GSTIN, row.TradeName)
			if row.Email != "" {
				if _, seen := out.EmailByGSTIN[row.GSTIN]; !seen {
					out.EmailByGSTIN[row.GSTIN] = row.Email
				}
			}
		}
	}

	out.NameByGSTIN = votes.winners()
	return out
}

// nameVotes conta quantas vezes cada nome aparece por GSTIN, lembrando a ordem
// em que os nomes surgiram para desempatar.
type nameVotes struct {
	byGSTIN map[string]*nameTally
}

type nameTally struct {
	order  []string
	counts map[string]int
}

func newNameVotes() *nameVotes {
	return &nameVotes{byGSTIN: make(map[string]*nameTally)}
}

func (v *nameVotes) add(gstin, name string) {
	if name == "" {
		return
	}
	t, ok := v.byGSTIN[gstin]
	if !ok {
		t = &nameTally{counts: make(map[string]int)}
		v.byGSTIN[gstin] = t
	}
	if t.counts[name] == 0 {
		t.order = append(t.order, name)
	}
	t.counts[name]++
}

func (v *nameVotes) winners() map[string]string {
	out := make(map[string]string, len(v.byGSTIN))
	for gstin, t := range v.byGSTIN {
		best, bestCount := "", 0
		for _, name := range t.order {
			if c := t.counts[name]; c > bestCount {
				best, bestCount = name, c
			}
		}
		out[gstin] = best
	}
	return out
}

// fieldLookup encontra a coluna mesmo quando o cabeçalho vem com caixa ou
// espaços diferentes.
type fieldLookup struct {
	folded map[string]string
}

func newFieldLookup() *fieldLookup {
	return &fieldLookup{folded: make(map[string]string)}
}

func (l *fieldLookup) fold(s string) string {
	if f, ok := l.folded[s]; ok {
		return f
	}
	f := strings.ToLower(strings.Join(strings.Fields(s), " "))
	l.folded[s] = f
	return f
}

// get prefere o nome exato; entre cabeçalhos equivalentes vence o menor em
// ordem lexicográfica, para que o resultado não dependa da ordem do mapa.
func (l *fieldLookup) get(r domain.RawRow, col string) any {
	if v, ok := r[col]; ok {
		return v
	}
	want := l.fold(col)
	best, found := "", false
	for k := range r {
		if l.fold(k) == want && (!found || k < best) {
			best, found = k, true
		}
	}
	if !found {
		return nil
	}
	return r[best]
}

func (l *fieldLookup) has(r domain.RawRow, col string) bool {
	if _, ok := r[col]; ok {
		return true
	}
	want := l.fold(col)
	for k := range r {
		if l.fold(k) == want {
			return true
		}
	}
	return false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case interface{ String() string }:
		return t.String()
	default:
		return ""
	}
}

func cleanGSTIN(v any) string {
	return strings.ToUpper(strings.TrimSpace(asString(v)))
}

func cleanEmail(v any) string {
	return strings.ToLower(strings.TrimSpace(asString(v)))
}

func cleanTrade(v any) string {
	return strings.Join(strings.Fields(strings.ToUpper(asString(v))), " ")
}

// cleanInvoice aplica, nesta ordem: caixa alta, remoção de espaços e hífens,
// barra invertida para barra e, na primeira sequência de dígitos, corte dos
// zeros à esquerda quando seguidos de dígito não nulo.
func cleanInvoice(v any) string {
	s := strings.ToUpper(strings.TrimSpace(asString(v)))
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, `\`, "/")
	return stripLeadingZeros(s)
}

func stripLeadingZeros(s string) string {
	start := strings.IndexFunc(s, isDigit)
	if start < 0 || s[start] != '0' {
		return s
	}
	end := start
	for end < len(s) && s[end] == '0' {
		end++
	}
	if end < len(s) && s[end] >= '1' && s[end] <= '9' {
		return s[:start] + s[end:]
	}
	return s
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// toNum converte a célula em número. O segundo retorno é falso quando havia
// conteúdo que não pôde ser lido; nesse caso o valor é zero.
func toNum(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		s = strings.NewReplacer(",", "", "₹", "", " ", "").Replace(s)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(n)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

const dateLayout = "02/01/2006"

var dmyRegex = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02-Jan-2006",
	"02-Jan-06",
	"2-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// excelEpoch é o dia zero das datas seriais do Excel.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseInvoiceDate devolve a data como DD/MM/AAAA. Aceita número serial do
// Excel, DD/MM/AA[AA] (ano com dois dígitos vira 20xx) e formatos ISO. Se nada
// servir, devolve o texto original e falso.
func parseInvoiceDate(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case float64:
		return serialDate(t)
	case int:
		return serialDate(float64(t))
	case int64:
		return serialDate(float64(t))
	case time.Time:
		return t.Format(dateLayout), true
	}

	s := strings.TrimSpace(asString(v))
	if s == "" {
		return "", true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if d, ok := serialDate(f); ok {
			return d, true
		}
		return s, false
	}
	if m := dmyRegex.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Day() == day && int(d.Month()) == month {
			return d.Format(dateLayout), true
		}
		return s, false
	}
	for _, layout := range isoLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(dateLayout), true
		}
	}
	return s, false
}

func serialDate(f float64) (string, bool) {
	if math.IsNaN(f) || f < 1 || f > 2958465 {
		return asString(f), false
	}
	return excelEpoch.AddDate(0, 0, int(f)).Format(dateLayout), true
}

const gstinAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var gstinShape = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)

// ValidGSTIN confere o formato e o dígito verificador (módulo 36) do GSTIN.
// Só alimenta as estatísticas; a forma canônica continua sendo trim + caixa alta.
func ValidGSTIN(g string) bool {
	if !gstinShape.MatchString(g) {
		return false
	}
	sum := 0
	for i := 0; i < 14; i++ {
		v := strings.IndexByte(gstinAlphabet, g[i])
		if i%2 == 1 {
			v *= 2
		}
		sum += v/36 + v%36
	}
	check := (36 - sum%36) % 36
	return g[14] == gstinAlphabet[check]
}

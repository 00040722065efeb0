package reconcile

import "github.com/LuisEduardoPedra/gstrecon/internal/domain"

// UnknownTradeName é usado quando nenhum lado informou o nome do fornecedor.
const UnknownTradeName = "Unknown"

// Extraction é o resultado da separação das divergências por fornecedor.
type Extraction struct {
	Records []domain.MismatchRecord
	// SkippedNoContact lista, na ordem em que apareceram, os GSTINs com
	// divergências que ficaram de fora por não terem e-mail.
	SkippedNoContact []string
	// SkippedEntries conta, por GSTIN ignorado, quantas notas divergiam.
	SkippedEntries map[string]int
	// Unattributed conta as notas divergentes sem GSTIN, como linhas de
	// total ou rodapé; não pertencem a nenhum fornecedor.
	Unattributed int
}

// ExtractMismatches percorre a união das chaves (primeiro as do livro, depois
// as que só existem no GSTR-2B) e gera uma entrada por nota divergente,
// agrupando por GSTIN. Notas nos dois lados cujo valor tributável bate dentro
// da tolerância ficam de fora.
func ExtractMismatches(book, gstr []domain.GroupedRow, emailByGSTIN, nameByGSTIN map[string]string, eps float64) Extraction {
	left, right := indexByKey(book), indexByKey(gstr)

	keys := make([]domain.InvoiceKey, 0, len(book)+len(gstr))
	for _, r := range book {
		keys = append(keys, r.Key())
	}
	for _, r := range gstr {
		if _, dup := left[r.Key()]; !dup {
			keys = append(keys, r.Key())
		}
	}

	out := Extraction{SkippedEntries: make(map[string]int)}
	position := make(map[string]int)

	for _, k := range keys {
		l, inLeft := left[k]
		r, inRight := right[k]

		var entry domain.MismatchEntry
		switch {
		case inLeft && inRight:
			if Clamp(l.Taxable-r.Taxable, eps) == 0 {
				continue
			}
			entry = domain.MismatchEntry{
				Kind:       domain.MismatchAmount,
				Book:       domain.AmountsOf(l),
				Statement:  domain.AmountsOf(r),
				Difference: l.Taxable - r.Taxable,
			}
		case inLeft:
			entry = domain.MismatchEntry{
				Kind:       domain.MismatchMissingInStatement,
				Book:       domain.AmountsOf(l),
				Difference: l.Taxable,
			}
		default:
			entry = domain.MismatchEntry{
				Kind:       domain.MismatchMissingInBook,
				Statement:  domain.AmountsOf(r),
				Difference: -r.Taxable,
			}
		}
		entry.Invoice = k.Invoice
		entry.InvoiceDate = l.InvoiceDate
		if entry.InvoiceDate == "" {
			entry.InvoiceDate = r.InvoiceDate
		}

		if k.GSTIN == "" {
			out.Unattributed++
			continue
		}
		email := emailByGSTIN[k.GSTIN]
		if email == "" {
			if out.SkippedEntries[k.GSTIN] == 0 {
				out.SkippedNoContact = append(out.SkippedNoContact, k.GSTIN)
			}
			out.SkippedEntries[k.GSTIN]++
			continue
		}

		i, ok := position[k.GSTIN]
		if !ok {
			name := nameByGSTIN[k.GSTIN]
			if name == "" {
				name = UnknownTradeName
			}
			position[k.GSTIN] = len(out.Records)
			out.Records = append(out.Records, domain.MismatchRecord{GSTIN: k.GSTIN, TradeName: name, Email: email})
			i = len(out.Records) - 1
		}
		out.Records[i].Entries = append(out.Records[i].Entries, entry)
	}
	return out
}

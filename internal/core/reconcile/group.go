package reconcile

import "github.com/LuisEduardoPedra/gstrecon/internal/domain"

// GroupByKey junta as linhas por (GSTIN, número da nota) somando os valores.
// A saída segue a ordem da primeira ocorrência de cada chave e a data é a
// primeira não vazia encontrada.
func GroupByKey(rows []domain.CleanRow) []domain.GroupedRow {
	index := make(map[domain.InvoiceKey]int, len(rows))
	out := make([]domain.GroupedRow, 0, len(rows))

	for _, r := range rows {
		key := domain.InvoiceKey{GSTIN: r.GSTIN, Invoice: r.Invoice}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, domain.GroupedRow{GSTIN: r.GSTIN, Invoice: r.Invoice, InvoiceDate: r.InvoiceDate})
			i = len(out) - 1
		}
		g := &out[i]
		g.InvoiceVal += r.InvoiceVal
		g.IGST += r.IGST
		g.CGST += r.CGST
		g.SGST += r.SGST
		g.Taxable += r.Taxable
		if g.InvoiceDate == "" {
			g.InvoiceDate = r.InvoiceDate
		}
	}
	return out
}

// AsCleanRows devolve as notas agrupadas no formato de linha limpa, para que
// possam ser reagrupadas.
func AsCleanRows(rows []domain.GroupedRow) []domain.CleanRow {
	out := make([]domain.CleanRow, len(rows))
	for i, g := range rows {
		out[i] = domain.CleanRow{
			GSTIN:       g.GSTIN,
			Invoice:     g.Invoice,
			InvoiceDate: g.InvoiceDate,
			InvoiceVal:  g.InvoiceVal,
			IGST:        g.IGST,
			CGST:        g.CGST,
			SGST:        g.SGST,
			Taxable:     g.Taxable,
		}
	}
	return out
}

// Totals soma todas as notas de uma tabela.
func Totals(rows []domain.GroupedRow) domain.Amounts {
	var t domain.Amounts
	for _, r := range rows {
		t = t.Add(domain.AmountsOf(r))
	}
	return t
}

func indexByKey(rows []domain.GroupedRow) map[domain.InvoiceKey]domain.GroupedRow {
	m := make(map[domain.InvoiceKey]domain.GroupedRow, len(rows))
	for _, r := range rows {
		m[r.Key()] = r
	}
	return m
}

// rollup soma as notas por uma chave derivada (GSTIN ou nome comercial).
func rollup(rows []domain.GroupedRow, keyOf func(domain.GroupedRow) string) map[string]domain.Amounts {
	m := make(map[string]domain.Amounts)
	for _, r := range rows {
		k := keyOf(r)
		m[k] = m[k].Add(domain.AmountsOf(r))
	}
	return m
}

package classifier

import "regexp"

// Divisões usadas nas regras embutidas.
const (
	DivisionTSG    = "TSG"
	DivisionCSD    = "CSD"
	DivisionITSS   = "ITSS"
	DivisionCommon = "Common"
)

// Value é o resultado de uma regra: um texto fixo ou uma função do histórico
// e dos grupos capturados. O valor zero significa "não definido".
type Value struct {
	static string
	fn     func(narration string, groups []string) string
	set    bool
}

// Static devolve um valor fixo (pode ser vazio).
func Static(s string) Value {
	return Value{static: s, set: true}
}

// Func devolve um valor calculado a partir do histórico.
func Func(fn func(narration string, groups []string) string) Value {
	return Value{fn: fn, set: true}
}

// IsSet diz se o valor foi definido.
func (v Value) IsSet() bool { return v.set }

func (v Value) resolve(narration string, groups []string, fallback string) string {
	switch {
	case !v.set:
		return fallback
	case v.fn != nil:
		return v.fn(narration, groups)
	default:
		return v.static
	}
}

// Rule associa um padrão de histórico a uma divisão e a uma observação.
// Divisão não definida vira Common.
type Rule struct {
	Match    *regexp.Regexp
	Division Value
	Remark   Value
}

func ci(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

func rule(pattern, division, remark string) Rule {
	return Rule{Match: ci(pattern), Division: Static(division), Remark: Static(remark)}
}

type when struct {
	re     *regexp.Regexp
	remark string
}

// firstOf devolve a observação da primeira condição satisfeita.
func firstOf(conds ...when) func(string, []string) string {
	return func(narration string, _ []string) string {
		for _, c := range conds {
			if c.re.MatchString(narration) {
				return c.remark
			}
		}
		return ""
	}
}

// PriorityRules vêm primeiro, das mais específicas para as mais gerais.
var PriorityRules = []Rule{
	rule(`NATIONAL INFORMATICS CENTRE SERVICE`, DivisionITSS, "NICSI"),
	rule(`BHARTI HEXACOM`, DivisionTSG, "Bharti"),
	rule(`BEETEL TELETECH`, DivisionTSG, "Beetel"),
	rule(`ZTE`, DivisionTSG, "ZTE"),
	rule(`BHARAT SANCHAR NIGAM`, DivisionTSG, "BSNL"),
	rule(`VODAFONE IDEA`, DivisionTSG, "Vodafone"),
	rule(`INDUS TOWERS`, DivisionTSG, "Indus"),
	rule(`BHARTI AIRTEL`, DivisionTSG, "Airtel"),
	rule(`MANTARAV`, DivisionITSS, "Mantrav"),
	rule(`LARSEN AND TOUBRO`, DivisionTSG, "L&T"),
	rule(`KIRAN MALIK`, DivisionTSG, "Rent"),
	rule(`NEERU CHHABRA`, DivisionCommon, "Rent"),
	{Match: regexp.MustCompile(`SAMSUNG INDIA ELECTRONICS (PVT|PRIVATE)`), Division: Static(DivisionCSD), Remark: Static("Samsung")},
	rule(`SAMSUNG BHIWANI`, DivisionCSD, "Samsung Bhiwani"),
	rule(`ADISOFT`, DivisionITSS, "Adisoft"),
	rule(`SOHAM ENTERPRISES`, DivisionTSG, "Vendor"),
	rule(`MC CANCELLED`, DivisionCommon, "EMD"),
	rule(`BONSAI ENTERPRISES PVT LTD`, DivisionTSG, "Vendor"),
	rule(`VARDHMAN PLASTIC`, DivisionCommon, "Vendor"),
	rule(`ESIC`, DivisionCommon, "ESIC"),
	rule(`VERTIV ENERGY PRIVATE LIMITED`, DivisionTSG, "Vertiv"),
	rule(`INDOFAST SWAP ENERGY PRIVATE LIMITED`, DivisionTSG, "Indofast"),
	rule(`DD/MC CANCELLATION`, DivisionTSG, "Bank Charges"),
	rule(`BILLDKUPPOWERCORPLTD`, DivisionCommon, "Electricity"),
	rule(`EPFO`, DivisionCommon, "EPFO"),
	rule(`ACME DIGITEK SOLUTIONS PRIVATE`, DivisionITSS, "Digitek"),
	rule(`04850330000355`, DivisionTSG, "ATC"),
	rule(`RV SOLUTIONS PRIVATE LIMITED-RV SOLUTIONS PRIVATE LIMITED`, DivisionCommon, "Interbank"),
	rule(`RV SOLUTIONS PVT LTD-RV SOLUTIONS PVT LTD`, DivisionCommon, "Interbank"),
	rule(`HARMAN INTERNATIONAL \(INDIA\)`, DivisionCSD, "Harman"),
	rule(`REALME MOBILE TELECO`, DivisionCSD, "Realme"),
	rule(`SINGH CORPORATION`, DivisionTSG, "Singh Corp"),
	rule(`CLN ENERGY LIMITED`, DivisionTSG, "CLN"),
	rule(`BHARATSANCHARNIGAM`, DivisionTSG, "BSNL"),
	rule(`STL NETWORKS`, DivisionTSG, "STL"),
	rule(`DMI HOUSING FINANCE`, DivisionITSS, "DMI"),
	rule(`DAIKIN AIRCONDITIONING INDIA`, DivisionTSG, "Daikin"),
	rule(`UVASKA`, DivisionTSG, "Uvaska"),
	rule(`RV SOLUTIONS PRIVATE LIMITED-R V SOLUTIONS PVT LTD`, DivisionCommon, "Interbank"),
	rule(`RV SOLUTIONS PRIVATE LIMITED-RV SOLUTIONS PVT LTD`, DivisionCommon, "Interbank"),
	rule(`\bSALARY\s+ITC\b`, DivisionITSS, "Salary"),
	rule(`TOYOTAFINANCIALSERVI`, DivisionCommon, "Loan"),
	rule(`VENDOR\s+PAYMENT\s+CSD`, DivisionCSD, "Vendor payment"),
	rule(`VENDOR\s+PAYMENT\s+ITC?`, DivisionITSS, "Vendor payment"),
	rule(`VENDOR\s+PAYMENT\s+COM`, DivisionCommon, "Vendor payment"),
	rule(`FT\s*-\s*SALARY\s+ADV\s+IT\b`, DivisionITSS, "Salary Adv"),
	rule(`\bSALARY\s+IT\b`, DivisionITSS, "Salary"),
	rule(`DD ISSUE`, "", "EMD"),

	// Adiantamento com a divisão na própria descrição.
	{
		Match: ci(`IMPREST\s+(CSD|COM|ITC?|IT)\b`),
		Division: Func(func(_ string, groups []string) string {
			if len(groups) < 2 {
				return DivisionITSS
			}
			switch tag := upper(groups[1]); tag {
			case "CSD":
				return DivisionCSD
			case "COM":
				return DivisionCommon
			default:
				return DivisionITSS
			}
		}),
		Remark: Static("Imprest"),
	},

	rule(`VENDOR\s+PAYMENT\s+TSG`, DivisionTSG, "Vendor payment"),
	rule(`\bFNF\s+TSG\b`, DivisionTSG, "FNF"),
	rule(`\bRENT\s+TSG\b`, DivisionTSG, "Rent"),
	rule(`\bELE(?:CTRICITY)?\s*PAYMENT\s+TSG\b`, DivisionTSG, "Electricity payment"),

	rule(`IB FUNDS TRANSFER|TPT-RV.*TO.*575|TO 575-?RV SOLUTIONS`, DivisionCommon, "Interbank"),
}

// FallbackRules são avaliadas depois das prioritárias.
var FallbackRules = []Rule{
	rule(`FUND TRANSFER\s+TSG|FT\s*-\s*FUND TRANSFER\s+TSG`, DivisionTSG, "FT"),

	{
		Match:    ci(`\bTSG\b`),
		Division: Static(DivisionTSG),
		Remark: Func(firstOf(
			when{ci(`SALARY`), "Salary"},
			when{ci(`VENDOR`), "Vendor payment"},
			when{ci(`\bFNF\b`), "FNF"},
			when{ci(`RENT`), "Rent"},
			when{ci(`(FUND TRANSFER|^FT\b)`), "FT"},
		)),
	},
	{
		Match:    ci(`\bCSD\b`),
		Division: Static(DivisionCSD),
		Remark: Func(firstOf(
			when{ci(`\bFNF\b`), "FNF"},
			when{ci(`\bRENT\b`), "Rent"},
			when{ci(`\bVENDOR`), "Vendor payment"},
		)),
	},
	{
		Match:    ci(`\bITC?\b`),
		Division: Static(DivisionITSS),
		Remark: Func(firstOf(
			when{ci(`\bFNF\b`), "FNF"},
			when{ci(`\bRENT\b`), "Rent"},
			when{ci(`\bVENDOR`), "Vendor payment"},
		)),
	},

	rule(`IMPREST`, DivisionCommon, "Imprest"),
	rule(`VENDOR PAYMENT`, DivisionCommon, "Vendor"),
	{Match: ci(`\bFNF\b`), Remark: Static("FNF")},
}

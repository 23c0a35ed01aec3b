package formatter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/textnorm"
)

type replacement struct {
	from, to string
}

// acronyms are expanded case-sensitively. IV, IM and SC stay out: they clash
// with roman numerals and English words and are fixed by hand.
var acronyms = []replacement{
	{"AINEs", "Anti-inflamatórios não esteroides"},
	{"UCI", "Unidade de Cuidados Intensivos"},
	{"SU", "Serviço de Urgência"},
	{"ECG", "Eletrocardiograma"},
	{"TA", "Tensão Arterial"},
	{"SNC", "Sistema Nervoso Central"},
	{"AV", "Auriculoventricular"},
	{"TCA", "Tempo de Coagulação Ativado"},
	{"TTPA", "Tempo de Tromboplastina Parcial Ativada"},
	{"SpO2", "Saturação de Oxigénio"},
	{"ClCr", "Depuração da Creatinina"},
	{"SDR", "Síndrome de Dificuldade Respiratória"},
	{"TPSV", "Taquicardia Paroxística Supraventricular"},
	{"INR", "Rácio Normalizado Internacional"},
	{"SSJ", "Síndrome de Stevens-Johnson"},
	{"NET", "Necrólise Epidérmica Tóxica"},
	{"DRESS", "Reação a Fármaco com Eosinofilia e Sintomas Sistémicos"},
	{"RCM", "Resumo das Características do Medicamento"},
	{"FI", "Folheto Informativo"},
	{"CPK", "Creatina-fosfoquinase"},
	{"HIT", "Trombocitopenia Induzida por Heparina"},
	{"IMAO", "Inibidor da Monoamino Oxidase"},
	{"NVPO", "Náuseas e Vómitos Pós-Operatórios"},
	{"PEGA", "Pustulose Exantemática Generalizada Aguda"},
	{"PVC", "Policloreto de vinilo"},
	{"CID", "Coagulação Intravascular Disseminada"},
}

// terminology patterns are regular expressions matched case-insensitively
var terminology = []replacement{
	{`soro fisiológico`, "Cloreto de sódio 0,9%"},
	{`águia p\.p\.i\.`, "Água para Preparação de Injetáveis"},
	{`água ppi`, "Água para Preparação de Injetáveis"},
	{`água p\.p\.i`, "Água para Preparação de Injetáveis"},
	{`NaCl 0,9%`, "Cloreto de sódio 0,9%"},
	{`soro glicosado`, "Glicose a 5%"},
	{`Glicose 5%`, "Glicose a 5%"},
	{`bólus`, "Bólus"},
	{`q12h`, "cada 12 horas"},
	{`q8h`, "cada 8 horas"},
	{`q6h`, "cada 6 horas"},
	{`q24h`, "cada 24 horas"},
	{`q4h`, "cada 4 horas"},
	{`µg`, "mcg"},
	{`M\.U\.I\.`, "Milhões de Unidades Internacionais"},
}

// symbols are replaced literally, two-character comparisons first
var symbols = []replacement{
	{">=", "maior ou igual a"},
	{"<=", "menor ou igual a"},
	{"≥", "maior ou igual a"},
	{"≤", "menor ou igual a"},
	{">", "maior que"},
	{"<", "menor que"},
}

// MissingContent is an entry known to be absent from the authored dataset
type MissingContent struct {
	MedicationID string
	Section      entities.Section
	Text         string
}

// missingContent lists entries to merge back into the dataset
var missingContent = []MissingContent{
	{"dexametasona", entities.SectionAdministration, "Dose Covid-19: 6 mg Endovenosa uma vez por dia (até 10 dias)"},
	{"haloperidol", entities.SectionAdministration, "Agitação psicomotora aguda: 5 mg Intramuscular; pode ser repetido a cada hora (máx 20 mg/dia)"},
	{"alfentanil", entities.SectionAdministration, "Adultos (Procedimentos Curtos menor que 10 min): 7-15 mcg/kg Bólus"},
}

// rewrite transforms one string
type rewrite func(string) string

func literalLetterBounded(from, to string) rewrite {
	return func(s string) string {
		return replaceLetterBounded(s, from, to)
	}
}

func regexRewrite(re *regexp.Regexp, to string) rewrite {
	return func(s string) string {
		return re.ReplaceAllLiteralString(s, to)
	}
}

func literalRewrite(from, to string) rewrite {
	return func(s string) string {
		return strings.ReplaceAll(s, from, to)
	}
}

// buildRewrites compiles the tables in application order: acronyms, then
// terminology, then symbols
func buildRewrites() []rewrite {
	out := make([]rewrite, 0, len(acronyms)+len(terminology)+len(symbols))

	for _, a := range acronyms {
		if utf8.RuneCountInString(a.from) <= 3 {
			out = append(out, literalLetterBounded(a.from, a.to))
			continue
		}
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(a.from) + `\b`)
		out = append(out, regexRewrite(re, a.to))
	}

	for _, t := range terminology {
		pattern := t.from
		if utf8.RuneCountInString(pattern) <= 4 && !strings.Contains(pattern, " ") {
			pattern = `\b` + pattern + `\b`
		}
		out = append(out, regexRewrite(regexp.MustCompile(`(?i)`+pattern), t.to))
	}

	for _, s := range symbols {
		out = append(out, literalRewrite(s.from, s.to))
	}

	return out
}

// replaceLetterBounded replaces from with to wherever the match is neither
// preceded nor followed by a letter. Boundaries are checked against s, not
// against the partially rewritten output.
func replaceLetterBounded(s, from, to string) string {
	if from == "" || !strings.Contains(s, from) {
		return s
	}

	var b strings.Builder
	i := 0
	for {
		j := strings.Index(s[i:], from)
		if j < 0 {
			b.WriteString(s[i:])
			return b.String()
		}
		start := i + j
		end := start + len(from)

		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		next, _ := utf8.DecodeRuneInString(s[end:])
		before := start == 0 || !textnorm.IsLetter(prev)
		after := end == len(s) || !textnorm.IsLetter(next)

		if before && after {
			b.WriteString(s[i:start])
			b.WriteString(to)
			i = end
			continue
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		b.WriteString(s[i : start+size])
		i = start + size
	}
}

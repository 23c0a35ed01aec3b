package sections

import "regexp"

// Rule maps one or more heading patterns to a section key. Patterns run against
// normalized lines (lowercase, no diacritics, single spaces).
type Rule struct {
	Key      string
	Patterns []*regexp.Regexp
}

func rule(key string, patterns ...string) Rule {
	r := Rule{Key: key}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile(p))
	}
	return r
}

// RCMRules are the summary of product characteristics headings, in order
var RCMRules = []Rule{
	rule("indications", `^4\.1\s+indicacoes terapeuticas\b`),
	rule("dosageAdministration", `^4\.2\s+posologia e modo de administracao\b`),
	rule("contraindications", `^4\.3\s+contraindicacoes\b`),
	rule("warningsPrecautions", `^4\.4\s+advertencias e precaucoes especiais de utilizacao\b`),
	rule("interactions", `^4\.5\s+interacoes medicamentosas\b`),
	rule("pregnancyLactation", `^4\.6\s+fertilidade, gravidez e aleitamento\b`),
	rule("driving", `^4\.7\s+efeitos sobre a capacidade de conduzir\b`),
	rule("adverseReactions", `^4\.8\s+efeitos indesejaveis\b`),
	rule("shelfLife", `^6\.3\s+prazo de validade\b`),
	rule("storage", `^6\.4\s+precaucoes especiais de conservacao\b`),
	rule("handling", `^6\.6\s+precaucoes especiais de eliminacao e manuseamento\b`),
}

// FIRules are the patient leaflet headings, in order
var FIRules = []Rule{
	rule("whatIsIt", `^(1\.)?\s*o que e\b`),
	rule("beforeUse", `^(2\.)?\s*o que precisa de saber antes de utilizar\b`),
	rule("howToUse", `^(3\.)?\s*como utilizar\b`),
	rule("possibleEffects", `^(4\.)?\s*efeitos indesejaveis\b`, `^(4\.)?\s*efeitos secundarios\b`),
	rule("storage", `^(5\.)?\s*como conservar\b`),
	rule("contents", `^(6\.)?\s*conteudo da embalagem\b`),
}

// RulesFor returns the rule list of a document type, or nil for unknown types
func RulesFor(t DocType) []Rule {
	switch t {
	case TypeRCM:
		return RCMRules
	case TypeFI:
		return FIRules
	}
	return nil
}

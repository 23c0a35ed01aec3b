package entities

// Medication is a curated administration record. The ID is the stable slug used
// as the only cross-reference key (favorites, routing).
type Medication struct {
	ID                              string   `json:"id"`
	Name                            string   `json:"name"`
	Aliases                         []string `json:"aliases"`
	HighRisk                        bool     `json:"highRisk"`
	Classification                  []string `json:"classification"`
	Compatibility                   []string `json:"compatibility"`
	PresentationAndStorage          []string `json:"presentationAndStorage"`
	Preparation                     []string `json:"preparation"`
	Administration                  []string `json:"administration"`
	Stability                       []string `json:"stability"`
	ContraindicationsAndPrecautions []string `json:"contraindicationsAndPrecautions"`
	NursingCare                     []string `json:"nursingCare"`
}

// Section identifies one of the eight free-text lists of a Medication.
type Section string

const (
	SectionClassification                  Section = "classification"
	SectionCompatibility                   Section = "compatibility"
	SectionPresentationAndStorage          Section = "presentationAndStorage"
	SectionPreparation                     Section = "preparation"
	SectionAdministration                  Section = "administration"
	SectionStability                       Section = "stability"
	SectionContraindicationsAndPrecautions Section = "contraindicationsAndPrecautions"
	SectionNursingCare                     Section = "nursingCare"
)

// Sections lists every section in display order.
var Sections = []Section{
	SectionClassification,
	SectionCompatibility,
	SectionPresentationAndStorage,
	SectionPreparation,
	SectionAdministration,
	SectionStability,
	SectionContraindicationsAndPrecautions,
	SectionNursingCare,
}

// SectionLabels holds the Portuguese display label of each section.
var SectionLabels = map[Section]string{
	SectionClassification:                  "Classificação",
	SectionCompatibility:                   "Compatibilidade",
	SectionPresentationAndStorage:          "Apresentação e Armazenamento",
	SectionPreparation:                     "Preparação",
	SectionAdministration:                  "Administração",
	SectionStability:                       "Estabilidade",
	SectionContraindicationsAndPrecautions: "Contraindicações e Precauções",
	SectionNursingCare:                     "Cuidados de Enfermagem",
}

// Field returns a pointer to the list backing the given section, or nil for an
// unknown section.
func (m *Medication) Field(s Section) *[]string {
	switch s {
	case SectionClassification:
		return &m.Classification
	case SectionCompatibility:
		return &m.Compatibility
	case SectionPresentationAndStorage:
		return &m.PresentationAndStorage
	case SectionPreparation:
		return &m.Preparation
	case SectionAdministration:
		return &m.Administration
	case SectionStability:
		return &m.Stability
	case SectionContraindicationsAndPrecautions:
		return &m.ContraindicationsAndPrecautions
	case SectionNursingCare:
		return &m.NursingCare
	}
	return nil
}

// Clone returns a deep copy so callers can rewrite lists without touching a
// shared snapshot.
func (m Medication) Clone() Medication {
	out := m
	out.Aliases = cloneStrings(m.Aliases)
	for _, s := range Sections {
		field := out.Field(s)
		*field = cloneStrings(*field)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

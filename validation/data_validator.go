// Package validation checks dataset records and user input for the API.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dosesegura/dose-segura/entities"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
)

// Medication identifiers are lowercase slugs
var medicationIDRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const (
	maxNameLength  = 200
	maxEntryLength = 4000
	maxIDLength    = 100
	maxQueryLength = 100
)

// Compile-time check to ensure DataValidatorImpl implements DataValidator
var _ interfaces.DataValidator = (*DataValidatorImpl)(nil)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateMedication checks that a record stored under key is usable
func (v *DataValidatorImpl) ValidateMedication(key string, m *entities.Medication) error {
	if m == nil {
		return fmt.Errorf("medication is nil")
	}

	if err := v.ValidateMedicationID(key); err != nil {
		return fmt.Errorf("invalid key %q: %w", key, err)
	}

	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("empty name for medication %s", key)
	}

	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name too long for medication %s: %d characters", key, len(m.Name))
	}

	for _, section := range entities.Sections {
		for i, entry := range *m.Field(section) {
			if len(entry) > maxEntryLength {
				return fmt.Errorf("%s[%d] too long for medication %s: %d characters", section, i, key, len(entry))
			}
		}
	}

	return nil
}

// SanitizeDataset drops records that fail ValidateMedication, forces record
// ids to match their keys, replaces null lists with empty ones and reports
// everything it touched. The dataset is modified in place.
func (v *DataValidatorImpl) SanitizeDataset(dataset *entities.Dataset) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateIDs:     []string{},
		MismatchedIDs:    []string{},
		RejectedIDs:      []string{},
		EmptyMedications: []string{},
	}
	if dataset == nil {
		return report
	}

	report.DuplicateIDs = append(report.DuplicateIDs, dataset.Medications.Duplicates()...)

	for _, key := range dataset.Medications.Keys() {
		m, _ := dataset.Medications.Get(key)

		if err := v.ValidateMedication(key, &m); err != nil {
			logging.Warn("Rejecting medication", "id", key, "error", err)
			report.RejectedIDs = append(report.RejectedIDs, key)
			dataset.Medications.Delete(key)
			continue
		}

		if m.ID != key {
			report.MismatchedIDs = append(report.MismatchedIDs, key)
			m.ID = key
		}

		if m.Aliases == nil {
			m.Aliases = []string{}
		}

		empty := true
		for _, section := range entities.Sections {
			field := m.Field(section)
			if *field == nil {
				*field = []string{}
				report.NullSections++
			}
			if len(*field) > 0 {
				empty = false
			}
		}
		if empty {
			report.EmptyMedications = append(report.EmptyMedications, key)
		}

		dataset.Medications.Set(key, m)
	}

	return report
}

// ValidateInput validates search queries. The query only feeds a substring
// match over the snapshot, so any non-blank text up to maxQueryLength
// characters is accepted.
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if n := utf8.RuneCountInString(input); n > maxQueryLength {
		return fmt.Errorf("input too long: maximum %d characters", maxQueryLength)
	}

	return nil
}

// ValidateMedicationID validates a medication identifier slug
func (v *DataValidatorImpl) ValidateMedicationID(input string) error {
	if input == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(input) > maxIDLength {
		return fmt.Errorf("identifier too long: maximum %d characters", maxIDLength)
	}

	if !medicationIDRegex.MatchString(input) {
		return fmt.Errorf("identifier must contain only lowercase letters, digits and single hyphens")
	}

	return nil
}

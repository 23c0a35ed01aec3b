package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dataset is the bundled document consumed read-only by the application.
type Dataset struct {
	Version     string             `json:"version"`
	LastUpdated string             `json:"lastUpdated"`
	Medications OrderedMedications `json:"medications"`
}

// OrderedMedications maps identifiers to records while keeping the authored key
// order of the JSON object.
type OrderedMedications struct {
	keys       []string
	byID       map[string]Medication
	duplicates []string
}

// NewOrderedMedications builds a map from records, keyed by their ID, in order.
func NewOrderedMedications(meds ...Medication) OrderedMedications {
	var o OrderedMedications
	for _, m := range meds {
		o.Set(m.ID, m)
	}
	return o
}

// Len returns the number of distinct identifiers.
func (o *OrderedMedications) Len() int {
	return len(o.keys)
}

// Keys returns the identifiers in authored order.
func (o *OrderedMedications) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Get returns the record stored under id.
func (o *OrderedMedications) Get(id string) (Medication, bool) {
	m, ok := o.byID[id]
	return m, ok
}

// Set stores m under id. A new id is appended to the order; an existing one
// keeps its position.
func (o *OrderedMedications) Set(id string, m Medication) {
	if o.byID == nil {
		o.byID = make(map[string]Medication)
	}
	if _, exists := o.byID[id]; !exists {
		o.keys = append(o.keys, id)
	}
	o.byID[id] = m
}

// Delete removes id, preserving the order of the remaining keys.
func (o *OrderedMedications) Delete(id string) {
	if _, exists := o.byID[id]; !exists {
		return
	}
	delete(o.byID, id)
	for i, k := range o.keys {
		if k == id {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Values returns every record in authored order.
func (o *OrderedMedications) Values() []Medication {
	out := make([]Medication, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.byID[k])
	}
	return out
}

// Duplicates returns identifiers that appeared more than once in the decoded
// JSON object. The last value wins, the first position is kept.
func (o *OrderedMedications) Duplicates() []string {
	return o.duplicates
}

// UnmarshalJSON decodes a JSON object token by token to record key order.
func (o *OrderedMedications) UnmarshalJSON(b []byte) error {
	*o = OrderedMedications{byID: make(map[string]Medication)}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("medications must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected medications key %v", keyTok)
		}

		var m Medication
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("medication %q: %w", key, err)
		}
		if _, exists := o.byID[key]; exists {
			o.duplicates = append(o.duplicates, key)
		}
		o.Set(key, m)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes the object in authored key order.
func (o OrderedMedications) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
		buf.WriteByte(':')
		if err := enc.Encode(o.byID[k]); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

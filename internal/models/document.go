package models

import "fmt"

// Document is the indexing collaborator's output for one document: its name,
// optional body, and the already-normalized terms with their occurrence counts.
type Document struct {
	Name  string             `json:"name" yaml:"name"`
	Body  string             `json:"body,omitempty" yaml:"body,omitempty"`
	Terms map[string]float64 `json:"terms" yaml:"terms"`
}

// Validate checks that required fields are present and within limits.
func (d *Document) Validate() error {
	if d.Name == "" {
		return ErrMissingName
	}

	if len(d.Name) > 4096 {
		return ErrFieldTooLong("name", 4096)
	}

	for term, count := range d.Terms {
		if term == "" {
			return fmt.Errorf("document %q: %w", d.Name, ErrMissingContent)
		}

		if err := CheckStrength(count); err != nil {
			return fmt.Errorf("document %q term %q: %w", d.Name, term, err)
		}
	}

	return nil
}

// IndexResult summarises the outcome of an indexing batch.
type IndexResult struct {
	DocumentsIndexed int      `json:"documents_indexed"`
	DocumentsSkipped int      `json:"documents_skipped"`
	TermsLinked      int      `json:"terms_linked"`
	TermsFiltered    int      `json:"terms_filtered"`
	Errors           []string `json:"errors,omitempty"`
}

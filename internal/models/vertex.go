// Package models defines data types for the corpus graph.
package models

import (
	"math"
	"strings"
	"unicode"
)

// TypeMajor distinguishes documents from terms.
type TypeMajor uint8

// Major vertex types.
const (
	MajorUndefined TypeMajor = iota
	MajorDocument
	MajorTerm
)

// String returns the lowercase name of the major type.
func (t TypeMajor) String() string {
	switch t {
	case MajorDocument:
		return "document"
	case MajorTerm:
		return "term"
	default:
		return "undefined"
	}
}

// TypeMinor distinguishes single-word terms from multi-word phrases.
type TypeMinor uint8

// Minor vertex types.
const (
	MinorUndefined TypeMinor = iota
	MinorTerm
	MinorPhrase
)

// String returns the lowercase name of the minor type.
func (t TypeMinor) String() string {
	switch t {
	case MinorTerm:
		return "term"
	case MinorPhrase:
		return "phrase"
	default:
		return "undefined"
	}
}

// VertexType is the (major, minor) pair that, together with the content,
// identifies a vertex within a collection.
type VertexType struct {
	Major TypeMajor `json:"major" yaml:"major"`
	Minor TypeMinor `json:"minor" yaml:"minor"`
}

// String renders the type as "major/minor".
func (t VertexType) String() string {
	return t.Major.String() + "/" + t.Minor.String()
}

// Common vertex types.
var (
	DocumentType = VertexType{Major: MajorDocument}
	TermType     = VertexType{Major: MajorTerm, Minor: MinorTerm}
	PhraseType   = VertexType{Major: MajorTerm, Minor: MinorPhrase}
)

// TermTypeOf returns PhraseType for multi-word terms and TermType otherwise.
func TermTypeOf(term string) VertexType {
	if strings.IndexFunc(strings.TrimSpace(term), unicode.IsSpace) >= 0 {
		return PhraseType
	}

	return TermType
}

// VertexProperties is the storage-facing record of a vertex.
type VertexProperties struct {
	ID      int64             `json:"id"`
	Type    VertexType        `json:"type"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Well-known vertex metadata keys.
const (
	MetaBody    = "body"    // original document body
	MetaSurface = "surface" // alternate surface form of a term
)

// MetaMinDocFreq is the collection metadata key holding the minimum document
// frequency a term needs to be indexed.
const MetaMinDocFreq = "min_document_frequency"

// EdgeProperties is the storage-facing record of a directed edge.
type EdgeProperties struct {
	Strength   float64 `json:"strength"`
	FromDegree int64   `json:"from_degree"`
	ToDegree   int64   `json:"to_degree"`
	EnergyHits int64   `json:"energy_hits"`
}

// CheckStrength rejects strengths that are negative, NaN or infinite.
func CheckStrength(s float64) error {
	if !(s >= 0) || math.IsInf(s, 1) {
		return ErrNegativeStrength
	}

	return nil
}

// Neighbor is one entry of a vertex's outgoing neighbor list as returned by storage.
type Neighbor struct {
	Edge   EdgeProperties   `json:"edge"`
	Vertex VertexProperties `json:"vertex"`
}

// ProgressFunc reports progress of long-running bounded passes.
// stage names the pass; done and total count its steps.
type ProgressFunc func(stage string, done, total int)

package common

import (
	"slices"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
)

// Record is one unit of source text, for example a single constitutional
// article. Identifier is unique within the input collection and doubles as
// the namespace key of the record's own node ("<Kind>:<Identifier>").
type Record struct {
	Identifier string `json:"identifier" validate:"required"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// NodeID returns the id of the node that represents r itself.
func (r Record) NodeID(kind string) string {
	return util.NamespacedID(kind, r.Identifier)
}

// Node is a vertex of an extracted fragment. ID has the form
// "<Label>:<Number>" and is globally unique; Properties is free-form.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a directed relationship between two node ids. Endpoints are
// expected to be declared by the same or an earlier fragment.
type Edge struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Fragment is the subgraph extracted from exactly one Record.
//
// SourceRecordID names the record that produced the fragment. Fragments
// written before the field existed leave it empty; for those, the first node
// is by convention the record's own node.
type Fragment struct {
	SourceRecordID string `json:"source_record_id,omitempty"`
	Nodes          []Node `json:"nodes"`
	Edges          []Edge `json:"edges"`
}

// RecordID returns the id of the record f was extracted from, or "" when it
// cannot be determined.
func (f Fragment) RecordID() string {
	if f.SourceRecordID != "" {
		return f.SourceRecordID
	}
	if len(f.Nodes) > 0 {
		return f.Nodes[0].ID
	}
	return ""
}

// ErrorEntry is one line item of the operator-facing error log.
type ErrorEntry struct {
	RecordID string
	Kind     string
	Detail   string
	Raw      string
}

const (
	ErrorKindJSON    = "JSON ERROR"
	ErrorKindGeneral = "GENERAL ERROR"
)

const (
	LabelArticle   = "Article"
	LabelPart      = "Part"
	LabelSchedule  = "Schedule"
	LabelAmendment = "Amendment"
	LabelCaseLaw   = "CaseLaw"
	LabelConcept   = "Concept"
	LabelSubject   = "Subject"
)

const (
	EdgeContains   = "CONTAINS"
	EdgeRefersTo   = "REFERS_TO"
	EdgeAmendedBy  = "AMENDED_BY"
	EdgeInterprets = "INTERPRETS"
	EdgeMentions   = "MENTIONS"
	EdgeHasSubject = "HAS_SUBJECT"
)

// Vocabulary is the closed set of node labels and edge types that may appear
// in structural positions of graph-store queries.
type Vocabulary struct {
	Labels    []string
	EdgeTypes []string
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Labels: []string{
			LabelArticle, LabelPart, LabelSchedule, LabelAmendment,
			LabelCaseLaw, LabelConcept, LabelSubject,
		},
		EdgeTypes: []string{
			EdgeContains, EdgeRefersTo, EdgeAmendedBy,
			EdgeInterprets, EdgeMentions, EdgeHasSubject,
		},
	}
}

func (v Vocabulary) HasLabel(label string) bool {
	return slices.Contains(v.Labels, label)
}

func (v Vocabulary) HasEdgeType(edgeType string) bool {
	return slices.Contains(v.EdgeTypes, edgeType)
}

// Extend returns a copy of v with the extra labels and edge types appended.
func (v Vocabulary) Extend(labels, edgeTypes []string) Vocabulary {
	out := Vocabulary{
		Labels:    slices.Clone(v.Labels),
		EdgeTypes: slices.Clone(v.EdgeTypes),
	}
	for _, l := range labels {
		if l != "" && !out.HasLabel(l) {
			out.Labels = append(out.Labels, l)
		}
	}
	for _, t := range edgeTypes {
		if t != "" && !out.HasEdgeType(t) {
			out.EdgeTypes = append(out.EdgeTypes, t)
		}
	}
	return out
}

package graph

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/lexgraph/pkg/ai"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
)

// RecordText renders a record the way it is shown to the model:
// "<Kind> <Identifier>: <Title>" on the first line, the body below.
func RecordText(rec common.Record, kind string) string {
	return fmt.Sprintf("%s %s: %s\n%s", kind, rec.Identifier, rec.Title, rec.Body)
}

// BuildPrompt renders the extraction template around one record. The record
// text is interpolated verbatim, without truncation or escaping.
func BuildPrompt(rec common.Record, kind string, vocab common.Vocabulary) string {
	return fmt.Sprintf(
		ai.ExtractPromptLegal,
		strings.ToLower(kind),
		rec.NodeID(kind),
		strings.Join(vocab.Labels, ", "),
		strings.Join(vocab.EdgeTypes, ", "),
		RecordText(rec, kind),
	)
}

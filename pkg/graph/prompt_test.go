package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"

	"github.com/stretchr/testify/assert"
)

var errTestExhausted = errors.New("no scripted response left")

func TestBuildPrompt(t *testing.T) {
	rec := common.Record{
		Identifier: "21A",
		Title:      "Right to Education",
		Body:       "The State shall provide \"free\" education ```json {} ``` to all children.",
	}

	prompt := BuildPrompt(rec, common.LabelArticle, common.DefaultVocabulary())

	assert.Contains(t, prompt, "constitutional article.")
	assert.Contains(t, prompt, `with id "Article:21A"`)
	assert.Contains(t, prompt, "Allowed node labels: Article, Part, Schedule, Amendment, CaseLaw, Concept, Subject.")
	assert.Contains(t, prompt, "Allowed edge types: CONTAINS, REFERS_TO, AMENDED_BY, INTERPRETS, MENTIONS, HAS_SUBJECT.")
	assert.True(t, strings.HasSuffix(prompt,
		"TEXT:\n\"\"\"Article 21A: Right to Education\n"+rec.Body+"\"\"\"\n"),
		"record text must be interpolated verbatim at the end")
}

func TestBuildPromptKeepsLongBodies(t *testing.T) {
	body := strings.Repeat("clause ", 20000)
	prompt := BuildPrompt(common.Record{Identifier: "1", Body: body}, common.LabelArticle, common.DefaultVocabulary())
	assert.Contains(t, prompt, body)
}

func TestBuildPromptUsesVocabulary(t *testing.T) {
	vocab := common.DefaultVocabulary().Extend([]string{"Person"}, []string{"KNOWS"})
	prompt := BuildPrompt(common.Record{Identifier: "1"}, common.LabelArticle, vocab)
	assert.Contains(t, prompt, "Subject, Person.")
	assert.Contains(t, prompt, "HAS_SUBJECT, KNOWS.")
}

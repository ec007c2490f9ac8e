package ai

// ExtractPromptLegal is the instruction template sent for every input record.
//
// Arguments, in order: the record kind, the record's node id, the allowed
// node labels, the allowed edge types and the record text. The text is
// interpolated verbatim.
const ExtractPromptLegal = `Extract a knowledge graph from the following constitutional %s.
Return JSON in the format:
{
  "nodes": [
    {"id": "Article:21A", "label": "Article", "properties": {"number": "21A", "title": "...", "snippet": "..."}}
  ],
  "edges": [
    {"source_id": "Article:21A", "target_id": "Article:45", "type": "REFERS_TO", "properties": {"snippet": "..."}}
  ]
}
Example:
TEXT:
"""Article 21A: Right to education
The State shall provide free and compulsory education to all children of the age of six to fourteen years in such manner as the State may, by law, determine."""
JSON:
{"nodes": [{"id": "Article:21A", "label": "Article", "properties": {"number": "21A", "title": "Right to education"}}, {"id": "Concept:Free and compulsory education", "label": "Concept", "properties": {"name": "Free and compulsory education"}}], "edges": [{"source_id": "Article:21A", "target_id": "Concept:Free and compulsory education", "type": "MENTIONS", "properties": {"snippet": "free and compulsory education to all children"}}]}

The first node must be the node for this text itself, with id "%s".
Node ids have the form "<Label>:<Number or name>".
Allowed node labels: %s.
Allowed edge types: %s.
Keep JSON strictly valid and concise. Return only the JSON object, without code fences or commentary.
TEXT:
"""%s"""
`

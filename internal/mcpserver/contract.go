package mcpserver

// ObjectFormatContract describes the canonical JSON object model that LLM
// consumers should follow when reading or proposing graph objects.
const ObjectFormatContract = `# Wyrd Object Format Contract

The registry snapshot is a single JSON document: a map from object id to
object. Every object shares one envelope and is discriminated by "kind".

## Envelope

` + "```" + `json
{
  "id": "opaque uuid, immutable, never reused",
  "kind": "note | link | reified_link | snapshot",
  "created_at": "RFC3339",
  "last_modified": "RFC3339",
  "link_ids": ["derived back-reference cache, do not edit"]
}
` + "```" + `

## Kinds

- **note** — content entity: ` + "`" + `title` + "`" + `, ` + "`" + `gist` + "`" + ` (short summary),
  ` + "`" + `prose_content` + "`" + `, ` + "`" + `category` + "`" + `, ` + "`" + `aliases` + "`" + `, ` + "`" + `tags` + "`" + `.
  A note carrying ` + "`" + `children_ids` + "`" + ` is a container; ` + "`" + `children_ids` + "`" + ` is
  derived from hierarchical links and must not be written directly.
- **link** — directed edge: ` + "`" + `source_id` + "`" + `, ` + "`" + `target_id` + "`" + `, ` + "`" + `verb` + "`" + `,
  ` + "`" + `verb_inverse` + "`" + `, ` + "`" + `link_kind` + "`" + ` (` + "`" + `hierarchical` + "`" + ` = containment,
  ` + "`" + `semantic` + "`" + ` = arbitrary). Both endpoints must name existing objects.
  The hierarchical subgraph is acyclic; cycles are rejected.
- **reified_link** — a link promoted to also carry the note content fields,
  making the relationship itself addressable and containable.
- **snapshot** — a time-bounded alternate state of a base identity:
  ` + "`" + `time_state.parent_identity_id` + "`" + ` names the base,
  ` + "`" + `time_state.effective_from` + "`" + ` (inclusive) and optional
  ` + "`" + `time_state.valid_until` + "`" + ` (exclusive) bound the interval, and
  ` + "`" + `time_state.era` + "`" + ` is a human label. Intervals for one identity should
  not overlap; when they do, the latest effective_from wins at read time.

## Rules

1. Never invent ids; ids come from the engine.
2. Reference objects by base identity id, never by snapshot id.
3. Deleting an object removes a computed closure (links touching it at
   minimum); use preview_delete before proposing destructive changes.
`

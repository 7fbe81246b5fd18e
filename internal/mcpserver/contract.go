package mcpserver

// NoteFormatContract describes the note format and the frontmatter
// properties the linker honors. Served to MCP clients so agents write
// notes the scanner understands.
const NoteFormatContract = `Notes are Markdown files with optional YAML frontmatter.

Recognized frontmatter properties:
- title: overrides the note title (otherwise first H1, otherwise filename stem)
- aliases: list of alternative names this note is recognized under
- tags: list of tags (also recognized as inline #tags in the body)
- linker-case-sensitive: true/false, overrides case sensitivity for this
  note's title and aliases (tags linker-case-sensitive and
  linker-case-insensitive work too)
- linker-exact-match: true means this note's names only match standalone
  words, never parts of longer words
- linker-antialiases: list of longer phrases; an occurrence of a name is
  suppressed when it appears inside one of these phrases

Virtual links are matches of note titles/aliases in plain text. They are
not written into files; they are reported as spans (byte offsets plus
line/column) and merged into backlinks.

Links use wikilink syntax: [[path/to/note]] or [[path/to/note|display]].
Text already inside wikilinks, Markdown links, URLs, inline code, code
fences, and frontmatter is never matched.`

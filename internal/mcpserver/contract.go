package mcpserver

// WBSFormatContract describes the canonical WBS document format that
// LLM consumers should follow when reading or editing plan documents.
const WBSFormatContract = `# Jera WBS Document Format Contract

Every plan document stored in Jera MUST follow this structure.

## Structure

` + "```" + `markdown
# Project title
## Task title
| status | assignee | priority | start | end |
| --- | --- | --- | --- | --- |
| IN_PROGRESS | alice | HIGH | 2026-01-10 | 2026-01-20 |

Free-form memo text for the task. Standard Markdown, any length.

### Subtask title
| status |
| --- |
| TODO |
` + "```" + `

## Rules

1. **Headings are tasks.** Each ATX heading (` + "`" + `#` + "`" + ` to ` + "`" + `######` + "`" + `) starts a task;
   heading depth is the task's level in the work breakdown tree.
2. **The metadata table is optional** and, when present, must be the first
   content after the heading (blank lines allowed in between): exactly one
   header row, one delimiter row, one data row.
3. **Recognized columns:** status (TODO, IN_PROGRESS, DONE), assignee,
   priority (LOW, MEDIUM, HIGH), start, end (YYYY-MM-DD), duration
   (e.g. 3d, 1w), milestone (true/false), depends (semicolon-separated
   task titles), progress (0-100). Unknown columns are kept as custom fields.
4. **depends references tasks by title**, project-wide. Separate multiple
   dependencies with ` + "`" + `;` + "`" + `.
5. **Everything after the table is the memo** and belongs to the task until
   the next heading.
6. **File paths** end with ` + "`" + `.wbs.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8. Do not reorder or reformat sections you are not
   editing; unmodified sections round-trip byte-for-byte.

## Example

` + "```" + `markdown
# Website relaunch
## Design
| status | assignee | priority | start | end |
| --- | --- | --- | --- | --- |
| DONE | alice | HIGH | 2026-01-05 | 2026-01-16 |

Figma files live in the shared drive.

## Build
| status | depends | duration |
| --- | --- | --- |
| IN_PROGRESS | Design | 2w |

### Frontend
| status | assignee |
| --- | --- |
| TODO | bob |
` + "```" + `
`

// Package prompt builds the system/user message pair for a generation turn.
package prompt

import (
	"strings"

	"github.com/pzero-labs/pzero/internal/llm"
)

// systemInstruction describes the output contract: every generated file must
// appear as a heading naming its path followed by a fenced code block.
const systemInstruction = `You are Project-0, an AI MVP generator.

Your task:
1. Listen to the user's instruction (even if incomplete)
2. Fill in missing details creatively and logically
3. Generate a complete, working project as a set of files

Response Format:
For EVERY file in the project, emit a markdown heading naming the file path,
immediately followed by a fenced code block with the complete file content:

### index.html
` + "```html" + `
[complete file content]
` + "```" + `

### css/style.css
` + "```css" + `
[complete file content]
` + "```" + `

Requirements:
- Every file needs its own heading and fenced block
- File paths are relative, using forward slashes
- COMPLETE, WORKING code in every file (no placeholders)
- If you need to correct a file, re-emit it with the same heading; the
  latest version wins`

const contextPreamble = `

Project memory (treat as binding context from earlier turns):
`

// Build constructs the ordered system/user message pair for one instruction.
// A non-empty project context extends the system message with a verbatim
// context block.
func Build(projectContext, instruction string) []llm.Message {
	system := systemInstruction
	if projectContext != "" {
		var b strings.Builder
		b.WriteString(systemInstruction)
		b.WriteString(contextPreamble)
		b.WriteString(projectContext)
		system = b.String()
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: instruction},
	}
}

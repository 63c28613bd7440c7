package prompt

import (
	"fmt"
	"strings"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/internal/model"
)

// Terminator is the token the model is instructed to finish with. Streaming
// consumption stops exactly here; the token itself is never written out.
const Terminator = "END_OF_TESTS"

const systemPrompt = `You are a senior engineer writing unit tests.

Rules:
1. Output ONLY test code for the file you are given - no explanation, no commentary
2. Cover the public behavior of the file, including error paths and edge cases
3. Keep each test focused on one behavior
4. Match the conventions of the technologies listed in the request, when any are listed
5. Finish your output with a line containing exactly ` + Terminator

// Builder assembles the message thread for a test-generation request.
type Builder struct {
	Technologies []string
	Tips         []string
	PlanCases    []string // from the optional plan step
}

// Messages constructs the ordered message thread: one system message, a
// user/assistant pair per few-shot example, then the user message for the
// target file.
func (b Builder) Messages(examples []model.Example, fileName, content string) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
	}

	for _, ex := range examples {
		messages = append(messages,
			llm.Message{Role: "user", Content: b.UserPrompt(ex.File, ex.Source)},
			llm.Message{Role: "assistant", Content: ex.Tests},
		)
	}

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: b.UserPrompt(fileName, content),
	})

	return messages
}

// UserPrompt renders the request for one file. The prompt names the file and
// ends with a fenced code block containing the file content verbatim.
func (b Builder) UserPrompt(fileName, content string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Write unit tests for the file %q.\n", fileName))

	if len(b.Technologies) > 0 {
		sb.WriteString("\nUse the following technologies:\n")
		writeNumberedList(&sb, b.Technologies)
	}

	if len(b.Tips) > 0 {
		sb.WriteString("\nTips:\n")
		writeNumberedList(&sb, b.Tips)
	}

	if len(b.PlanCases) > 0 {
		sb.WriteString("\nCover these cases:\n")
		writeNumberedList(&sb, b.PlanCases)
	}

	sb.WriteString("\n```\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```")

	return sb.String()
}

// writeNumberedList renders items as a 1-indexed numbered list.
func writeNumberedList(sb *strings.Builder, items []string) {
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item))
	}
}

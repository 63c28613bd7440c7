package prompt

import (
	"fmt"
	"strings"
)

// PlanSystemPrompt instructs the model to enumerate test cases before any
// test code is generated. Used with the structured client.
const PlanSystemPrompt = `You are a senior engineer planning unit tests.

Given a source file, list the test cases its tests should cover, most
important first. Name behaviors, not function signatures: "rejects an empty
API key", not "TestNew". Keep the list short - cover the file, don't pad it.`

// PlanUserPrompt renders the plan-step request for one file.
func PlanUserPrompt(fileName, content string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("List the test cases for the file %q.\n", fileName))
	sb.WriteString("\n```\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String()
}

package model

// Example is a few-shot pair used to steer generated test style: a source
// file and the tests a human (or a previous good run) wrote for it.
type Example struct {
	Name   string // example name, from its directory
	File   string // source file name shown in the prompt
	Source string // source file content
	Tests  string // expected test code
}

// TestPlan is the structured output of the optional plan step: the cases the
// generated tests should cover, in priority order.
type TestPlan struct {
	Cases []string `json:"cases" jsonschema:"required,description=Names of the test cases to cover, most important first."`
}

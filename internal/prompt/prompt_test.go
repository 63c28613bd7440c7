package prompt_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/prompt"
)

var _ = Describe("Builder", func() {
	var builder prompt.Builder

	BeforeEach(func() {
		builder = prompt.Builder{}
	})

	Describe("UserPrompt", func() {
		It("contains the file name", func() {
			out := builder.UserPrompt("handler.go", "package http\n")
			Expect(out).To(ContainSubstring(`"handler.go"`))
		})

		It("ends with a fenced code block equal to the file content", func() {
			content := "package http\n\nfunc Health() {}\n"
			out := builder.UserPrompt("handler.go", content)
			Expect(out).To(HaveSuffix("```\n" + content + "```"))
		})

		It("closes the fence even when the content has no trailing newline", func() {
			out := builder.UserPrompt("a.go", "package a")
			Expect(out).To(HaveSuffix("```\npackage a\n```"))
		})

		It("renders technologies as a 1-indexed numbered list", func() {
			builder.Technologies = []string{"pytest", "hypothesis"}
			out := builder.UserPrompt("a.py", "x = 1\n")
			Expect(out).To(ContainSubstring("1. pytest\n2. hypothesis\n"))
			Expect(out).NotTo(ContainSubstring("0. pytest"))
		})

		It("renders tips as a 1-indexed numbered list", func() {
			builder.Tips = []string{"mock the clock", "avoid sleeps", "table tests"}
			out := builder.UserPrompt("a.go", "package a\n")
			Expect(out).To(ContainSubstring("1. mock the clock\n2. avoid sleeps\n3. table tests\n"))
		})

		It("omits list headers when there are no entries", func() {
			out := builder.UserPrompt("a.go", "package a\n")
			Expect(out).NotTo(ContainSubstring("technologies"))
			Expect(out).NotTo(ContainSubstring("Tips:"))
			Expect(out).NotTo(ContainSubstring("Cover these cases:"))
		})

		It("includes plan cases when present", func() {
			builder.PlanCases = []string{"rejects empty input", "propagates errors"}
			out := builder.UserPrompt("a.go", "package a\n")
			Expect(out).To(ContainSubstring("Cover these cases:\n1. rejects empty input\n2. propagates errors\n"))
		})
	})

	Describe("Messages", func() {
		It("starts with the system message and ends with the target file", func() {
			msgs := builder.Messages(nil, "handler.go", "package http\n")
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal("system"))
			Expect(msgs[0].Content).To(ContainSubstring(prompt.Terminator))
			Expect(msgs[1].Role).To(Equal("user"))
			Expect(msgs[1].Content).To(ContainSubstring(`"handler.go"`))
		})

		It("interleaves few-shot examples as user/assistant pairs in order", func() {
			examples := []model.Example{
				{Name: "first", File: "first.go", Source: "package first\n", Tests: "package first_test\n"},
				{Name: "second", File: "second.go", Source: "package second\n", Tests: "package second_test\n"},
			}

			msgs := builder.Messages(examples, "target.go", "package target\n")
			Expect(msgs).To(HaveLen(6))

			roles := make([]string, len(msgs))
			for i, m := range msgs {
				roles[i] = m.Role
			}
			Expect(roles).To(Equal([]string{"system", "user", "assistant", "user", "assistant", "user"}))

			Expect(msgs[1].Content).To(ContainSubstring(`"first.go"`))
			Expect(msgs[2].Content).To(Equal("package first_test\n"))
			Expect(msgs[3].Content).To(ContainSubstring(`"second.go"`))
			Expect(msgs[4].Content).To(Equal("package second_test\n"))
			Expect(msgs[5].Content).To(ContainSubstring(`"target.go"`))
		})

		It("applies the same template to examples and the target", func() {
			builder.Technologies = []string{"testify"}
			examples := []model.Example{
				{Name: "ex", File: "ex.go", Source: "package ex\n", Tests: "ok\n"},
			}

			msgs := builder.Messages(examples, "target.go", "package target\n")
			Expect(msgs[1].Content).To(ContainSubstring("1. testify"))
			Expect(msgs[3].Content).To(ContainSubstring("1. testify"))
		})
	})
})

var _ = Describe("PlanUserPrompt", func() {
	It("names the file and fences the content", func() {
		out := prompt.PlanUserPrompt("svc.go", "package svc")
		Expect(out).To(ContainSubstring(`"svc.go"`))
		Expect(strings.HasSuffix(out, "```\npackage svc\n```")).To(BeTrue())
	})
})

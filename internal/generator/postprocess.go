package generator

import (
	"strings"

	"testsmith.app/testsmith/internal/prompt"
)

// CutAtTerminator drops the terminator token and everything after it. The
// second return reports whether the token was present.
func CutAtTerminator(s string) (string, bool) {
	out, _, found := strings.Cut(s, prompt.Terminator)
	return out, found
}

// StripFences removes a leading and a trailing code-fence line. Models often
// wrap the whole answer in a markdown block even when told not to; the fence
// is never part of the test file.
func StripFences(s string) string {
	lines := strings.Split(s, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end-start < 2 {
		return s
	}

	first := strings.TrimSpace(lines[start])
	last := strings.TrimSpace(lines[end-1])
	if !strings.HasPrefix(first, "```") || last != "```" {
		return s
	}

	body := strings.Join(lines[start+1:end-1], "\n")
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body
}

// Finalize turns raw model output into the text written to the test file:
// terminator cut, fences stripped, exactly one trailing newline.
func Finalize(raw string) string {
	out, _ := CutAtTerminator(raw)
	out = StripFences(out)
	out = strings.TrimRight(out, "\n \t")
	if out == "" {
		return ""
	}
	return out + "\n"
}

// terminatorScanner watches a token stream for the terminator, which may
// arrive split across chunk boundaries. Feed returns the text that is safe
// to emit and whether the terminator was reached; once reached, further
// tokens are ignored.
type terminatorScanner struct {
	pending string
	done    bool
}

func (s *terminatorScanner) Feed(token string) (string, bool) {
	if s.done {
		return "", true
	}

	s.pending += token

	if idx := strings.Index(s.pending, prompt.Terminator); idx >= 0 {
		out := s.pending[:idx]
		s.pending = ""
		s.done = true
		return out, true
	}

	// Hold back any tail that could be the start of the terminator.
	hold := 0
	max := len(prompt.Terminator) - 1
	if max > len(s.pending) {
		max = len(s.pending)
	}
	for l := max; l > 0; l-- {
		if strings.HasPrefix(prompt.Terminator, s.pending[len(s.pending)-l:]) {
			hold = l
			break
		}
	}

	out := s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]
	return out, false
}

// Flush returns whatever was held back when the stream ended without a
// terminator.
func (s *terminatorScanner) Flush() string {
	if s.done {
		return ""
	}
	out := s.pending
	s.pending = ""
	return out
}

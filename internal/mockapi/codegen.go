package mockapi

import (
	"fmt"
	"strings"
	"unicode"
)

// RefinePrompt stands in for the language model. An empty prompt yields
// one derived from the project title.
func RefinePrompt(projectTitle, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		title := strings.TrimSpace(projectTitle)
		if title == "" {
			title = "Untitled"
		}
		return fmt.Sprintf("Animate the title %q in BLUE at ORIGIN with font size 48, "+
			"write it over 2 seconds, hold for 1 second, then fade it out over 1 second.", title)
	}
	prompt = strings.TrimRight(prompt, ".")
	return fmt.Sprintf("%s, centered at ORIGIN, drawn over 2 seconds and held for 1 second.", prompt)
}

// GenerateCode returns deterministic animation source for a prompt
func GenerateCode(prompt string) string {
	var b strings.Builder
	b.WriteString("from manim import *\nimport numpy as np\nimport time\n\n\n")
	fmt.Fprintf(&b, "class %s(Scene):\n", className(prompt))
	b.WriteString("    def construct(self):\n")
	fmt.Fprintf(&b, "        title = Text(%q, font_size=36)\n", truncate(prompt, 60))
	b.WriteString("        self.play(Write(title), run_time=2)\n")
	b.WriteString("        self.wait(1)\n")
	b.WriteString("        self.play(FadeOut(title), run_time=1)\n")
	return b.String()
}

func className(prompt string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(prompt, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		rs := []rune(strings.ToLower(word))
		if len(rs) == 0 || !unicode.IsLetter(rs[0]) && b.Len() == 0 {
			continue
		}
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
		if b.Len() >= 40 {
			break
		}
	}
	b.WriteString("Scene")
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

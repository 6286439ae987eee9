// Package detect classifies pasted text as code or prose with a weighted
// heuristic score. It needs no parser and no model; the goal is a fast
// guess good enough to decide which operations to offer for a selection.
package detect

import "strings"

// scoreThreshold is the minimum weighted score for text to count as code.
const scoreThreshold = 5

var codeKeywords = []string{
	"function", "def ", "class ", "import ", "export ", "const ", "let ",
	"var ", "return ", "if ", "for ", "while ", "switch ", "case ",
	"break ", "continue ", "public ", "private ", "protected ", "void ",
	"int ", "string ", "boolean ", "console.log", "printf", "cout",
	"System.out", "<?php", "#include", "package ", "using ", "namespace ",
	"interface ", "extends ", "implements ", "async ", "await ", "try ",
	"catch ", "finally ", "throw ", "new ", "this ", "super ",
}

var commentPatterns = []string{"//", "/*", "*/", "# ", "<!--", "-->", "#!"}

var fileExtensions = []string{
	".js", ".ts", ".py", ".java", ".cpp", ".c", ".html", ".css", ".php", ".rb",
}

// IsLikelyCode reports whether text looks like source code rather than
// prose. Texts shorter than 10 characters are never code.
func IsLikelyCode(text string) bool {
	return Score(text) >= scoreThreshold
}

// Score computes the weighted code-likelihood score for text. Structural
// punctuation and keywords add, prose signals subtract.
func Score(text string) int {
	if len(text) < 10 {
		return 0
	}

	lines := strings.Split(text, "\n")
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(text)
	score := 0

	// Structural punctuation carries the most weight.
	if strings.Contains(trimmed, "{") && strings.Contains(trimmed, "}") {
		score += 3
	}
	if strings.Contains(trimmed, "(") && strings.Contains(trimmed, ")") {
		score += 2
	}
	if strings.Contains(trimmed, ";") {
		score += 2
	}
	if strings.Contains(trimmed, "=") && strings.Contains(trimmed, ";") {
		score += 2
	}
	if strings.Contains(trimmed, "=>") {
		score += 2
	}
	if strings.Contains(trimmed, "function") {
		score += 3
	}

	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) {
			score += 2
		}
	}

	if len(lines) > 1 {
		indented := 0
		anyIndented := false
		for _, line := range lines {
			if strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t") {
				indented++
				if strings.TrimSpace(line) != "" {
					anyIndented = true
				}
			}
		}
		if float64(indented) > float64(len(lines))*0.3 {
			score += 3
		}
		if anyIndented {
			score += 2
		}
	}

	for _, p := range commentPatterns {
		if strings.Contains(text, p) {
			score++
		}
	}
	for _, ext := range fileExtensions {
		if strings.Contains(text, ext) {
			score++
		}
	}

	// Prose counter-signals: periods beating semicolons, filler words,
	// and long word runs per line all point away from code.
	prose := 0
	if strings.Count(text, ".")+1 > (strings.Count(text, ";")+1)*2 {
		prose++
	}
	if strings.Contains(lower, "the ") {
		prose++
	}
	if strings.Contains(lower, "and ") {
		prose++
	}
	if len(strings.Split(text, " ")) > len(lines)*10 {
		prose++
	}
	if prose >= 2 {
		score -= 3
	}

	return score
}

package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Operation is one of the supported AI actions.
type Operation string

const (
	OpReview   Operation = "review"
	OpSecurity Operation = "security"
	OpExplain  Operation = "explain"
	OpAnswer   Operation = "answer"
	OpTests    Operation = "tests"
	OpRefactor Operation = "refactor"
	OpAsk      Operation = "ask"
)

// Mode selects the terse or structured rendering of an operation.
type Mode string

const (
	ModeShort    Mode = "short"
	ModeDetailed Mode = "detailed"
)

// maxPayloadChars bounds how much selected code goes into a prompt.
const maxPayloadChars = 2000

// promptTemplate holds the two instruction renderings of one operation.
type promptTemplate struct {
	short    string
	detailed string
}

var promptTemplates = map[Operation]promptTemplate{
	OpReview: {
		short:    "Brief code review focusing on critical issues:",
		detailed: "Perform a thorough, professional code review of the following snippet:",
	},
	OpSecurity: {
		short:    "Check major security risks:",
		detailed: "Perform a security review of the following code, covering vulnerabilities and unsafe patterns:",
	},
	OpExplain: {
		short:    "Explain concisely:",
		detailed: "Explain what the following code does, its purpose, and how its parts interact:",
	},
	OpAnswer: {
		short:    "Answer concisely:",
		detailed: "Answer thoroughly, explaining your reasoning:",
	},
	OpTests: {
		short:    "Generate essential test cases:",
		detailed: "Generate realistic unit tests for the following code, covering edge cases:",
	},
	OpRefactor: {
		short:    "Suggest key refactors (max 3):",
		detailed: "Refactor this code to improve readability, maintainability, and performance while keeping behavior identical:",
	},
	OpAsk: {
		short:    "Answer the following question about the code clearly and concisely:",
		detailed: "Answer the following question about the code, explaining your reasoning with short examples where useful:",
	},
}

const (
	shortConstraint = "Answer in at most 3 bullet points. Keep the response under 300 characters."

	detailedConstraint = "Structure the response with these Markdown sections: " +
		"Summary, Findings (with a severity for each), Fixes (as code), Tests, Risks/Alternatives."

	historyHeader = "Conversation history (most recent last):"
)

// Compose builds the final prompt for an operation. It is a pure function
// and never fails: unknown operations fall back to a generic instruction,
// and an empty history simply composes the instruction alone.
func Compose(op Operation, mode Mode, payload string, history []Turn) string {
	payload = truncateRuneSafe(payload, maxPayloadChars)

	tpl, ok := promptTemplates[op]
	if !ok {
		tpl = promptTemplate{
			short:    fmt.Sprintf("Respond briefly to this %s request:", op),
			detailed: fmt.Sprintf("Respond in detail to this %s request:", op),
		}
	}

	instruction := tpl.short
	constraint := shortConstraint
	if mode == ModeDetailed {
		instruction = tpl.detailed
		constraint = detailedConstraint
	}

	var sb strings.Builder
	if transcript := renderHistory(history); transcript != "" {
		sb.WriteString(historyHeader)
		sb.WriteString("\n\n")
		sb.WriteString(transcript)
		sb.WriteString("\n\n---\n\n")
	}

	sb.WriteString(instruction)
	sb.WriteString("\n\n```\n")
	sb.WriteString(payload)
	sb.WriteString("\n```\n")
	sb.WriteString(constraint)
	return sb.String()
}

// renderHistory formats turns as an uppercased-role transcript, turns
// separated by blank lines. Nil or empty history renders as empty.
func renderHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	parts := make([]string, 0, len(history))
	for _, turn := range history {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(string(turn.Role)), turn.Content))
	}
	return strings.Join(parts, "\n\n")
}

// askPayload folds an optional code context into a question the way the
// extension did, capping the context at 1500 characters.
func askPayload(question, codeContext string) string {
	const maxContextChars = 1500
	ctx := strings.TrimSpace(codeContext)
	if ctx == "" {
		return question
	}
	ctx = truncateRuneSafe(ctx, maxContextChars)
	return fmt.Sprintf("Context:\n```\n%s\n```\n\nQuestion: %s", ctx, question)
}

// truncateRuneSafe caps s at max bytes without splitting a multi-byte rune,
// backing up to the nearest rune boundary when the cut lands mid-sequence.
func truncateRuneSafe(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

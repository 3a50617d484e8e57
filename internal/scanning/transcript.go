package scanning

import (
	"strings"
)

// transcribePrompt asks a vision model to reproduce a receipt as plain text
const transcribePrompt = `You are transcribing a Swedish grocery receipt. Reproduce the text exactly as printed, line by line.

Rules:
- Keep the header lines as printed, including "Kvitto", the store name on the line after it, "Datum: YYYY-MM-DD" and "Tid: HH:MM"
- Each purchased item goes on one line: name, 13 digit article number, unit price, quantity, unit and line total, separated by single spaces
- Mark discounted items with a leading "*" exactly as printed
- Put a discount on its own line directly after the item, as "<discount name> - <amount>"
- Use "." as the decimal separator
- Do not translate, summarize or add any text
- Do not use markdown code blocks`

// cleanTranscript strips the wrapping a model sometimes adds around a transcript
func cleanTranscript(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

package llm

import "strings"

const narratePrompt = `You summarize order activity for the operator of a small grocery delivery shop.
You receive a table of order counts per period. Reply in at most four short sentences:
the busiest and quietest periods, the overall trend, and anything unusual.
Do not invent numbers that are not in the table.`

const assistantPrompt = `You answer back-office questions for a chat-commerce grocery shop.
Use the tools to look up order summaries, vendors and vendor ledgers; never guess figures.
Amounts are in Indian rupees. Keep answers short and factual.`

func NarratePrompt() string {
	return narratePrompt
}

// AssistantPrompt returns the system prompt for tool-using questions. The
// interactive variant allows follow-ups that refer to earlier answers.
func AssistantPrompt(interactive bool) string {
	if !interactive {
		return assistantPrompt
	}
	return strings.Join([]string{
		assistantPrompt,
		"This is an interactive session: earlier questions and answers are part of the context.",
	}, "\n")
}

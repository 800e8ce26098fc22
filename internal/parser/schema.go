package parser

import (
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/mmynk/splitledger/internal/generation"
)

// SentinelName is the reserved member name standing for the user who wrote
// the description. It is never matched against the roster.
const SentinelName = "USER"

// expenseSchema is the response shape requested from both tiers.
var expenseSchema = generation.Schema{
	Name: "expense_draft",
	Definition: jsonschema.Definition{
		Type:                 jsonschema.Object,
		AdditionalProperties: false,
		Required:             []string{"expense", "members"},
		Properties: map[string]jsonschema.Definition{
			"expense": {
				Type:                 jsonschema.Object,
				AdditionalProperties: false,
				Required:             []string{"amount", "description"},
				Properties: map[string]jsonschema.Definition{
					"amount": {
						Type:        jsonschema.Integer,
						Description: "Total cost in whole US dollars.",
					},
					"description": {
						Type:        jsonschema.String,
						Description: "Short title for the expense, at most 64 characters, e.g. \"Dinner\".",
					},
				},
			},
			"members": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type:                 jsonschema.Object,
					AdditionalProperties: false,
					Required:             []string{"name", "role", "split"},
					Properties: map[string]jsonschema.Definition{
						"name": {
							Type:        jsonschema.String,
							Description: fmt.Sprintf("Person's name as written, or %q for the author.", SentinelName),
						},
						"role": {
							Type: jsonschema.String,
							Enum: []string{"payer", "participant"},
						},
						"split": {
							Type:        jsonschema.Array,
							Description: "Share of the amount as [numerator, denominator].",
							Items:       &jsonschema.Definition{Type: jsonschema.Integer},
						},
					},
				},
			},
		},
	},
}

// systemPrompt grounds both tiers identically.
var systemPrompt = fmt.Sprintf(`You turn a short note about a shared expense into structured data.

Rules:
- The author of the note is always a member. Name the author exactly %[1]q.
  Words like "I", "me", "my" and "we" (for the author's part) refer to %[1]q.
- Every other person keeps the name used in the note.
- Exactly one member has role "payer". If the note does not say who paid, the payer is %[1]q.
- Every member, including the payer, gets a split [numerator, denominator] of the total.
  Splits must add up to exactly 1. Split evenly unless the note says otherwise.
- amount is the total in whole US dollars. Round cents to the nearest dollar.
- description is a short capitalized title such as "Dinner", "Groceries" or "Uber to airport".
- When receipt images are attached, read the total from them.`, SentinelName)

// userPrompt wraps the description for the model.
func userPrompt(description string) string {
	return fmt.Sprintf("Expense note:\n%s", description)
}

package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

const strictJSONRules = `
Strictly Important:
- Only return valid JSON without any additional text or comments.
- Do not add any text before or after the JSON.
- Ensure the JSON output structure aligns with the given field configurations.
- If a field has predefined choices, select one randomly from the available choices.
- If a field has no predefined choices, generate a random value.`

// ticketPrompt asks for one ticket. choices maps a required field name to
// its raw Freshdesk choice set, or to null when the field is free-form.
func ticketPrompt(choices map[string]json.RawMessage) string {
	raw, _ := json.Marshal(choices)
	return fmt.Sprintf(`Generate a single random support ticket with the given field configurations.
Only include fields that are marked as required.
If a field has predefined choices, select one randomly from the available choices.
Ensure the output is a valid JSON object with the exact field names provided below:

{
  "subject": "Random Subject",
  "description": "Random Description",
  "priority": "Choose from choices randomly if available else random number",
  "status": "Choose from choices randomly if available else random, must be a number",
  "type": "Choose from choices randomly if available else random",
  "name": "Random Name",
  "email": "Random Email not johndoe@example.com",
  "phone": "Random Phone"
}

Choices:
%s

- For choices whose keys or values are numbers always answer with the number, never a string.
  For example {"Highest": 1, "Lowest": 5} means choose 1 or 5, and {"1": "Highest", "5": "Lowest"} means choose 1 or 5.
%s`, raw, strictJSONRules)
}

func replyPrompt(subject, description, companyName string) string {
	return fmt.Sprintf(`Generate a JSON response that mimics a Freshdesk ticket reply.

The ticket is about: %q
The ticket description is: %q

Create a helpful, professional and empathetic reply to address this customer's concern.
The reply should offer potential solutions if possible.

Return a complete JSON object with the following structure:
{
  "body": "<div>Your generated reply text here (HTML format)</div>",
  "from_email": "support@%s.freshdesk.com",
  "cc_emails": ["random email"],
  "bcc_emails": ["random email"],
  "attachments": []
}

Only return the JSON object, no other text.`, subject, strings.TrimSpace(description), companyName)
}

func contactsPrompt(n int) string {
	return fmt.Sprintf(`Create %d contacts for a Freshdesk help desk as a JSON array of objects with these fields:
{
  "name": "Random Name",
  "email": "Random Email not johndoe@example.com",
  "phone": "Random Phone",
  "mobile": "Random Phone",
  "twitter_id": "Random Twitter ID",
  "unique_external_id": "Random Unique External ID"
}
%s`, n, strictJSONRules)
}

func agentsPrompt(n int) string {
	return fmt.Sprintf(`Create %d agents for a Freshdesk help desk as a JSON array of objects with these fields:
{
  "ticket_scope": 1,
  "email": "Random Email not johndoe@example.com"
}
%s`, n, strictJSONRules)
}

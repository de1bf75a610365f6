package mcpserver

// BoardGuide describes the card board to LLM consumers.
const BoardGuide = `# Cardboard

The board mirrors a remote collection of cards. Each card has:

- ` + "`id`" + `: opaque string assigned by the remote service
- ` + "`title`" + `: short text
- ` + "`description`" + `: longer text

## Tools

- ` + "`list_cards`" + ` returns the cards in board order (newest additions first,
  then the remote collection order as last loaded).
- ` + "`add_card`" + ` creates a card. Title and description are optional; when both
  are omitted the remote service fills in its defaults.
- ` + "`delete_card`" + ` deletes a card by id.

Every add and delete answers with the same message a user would see
("Added!", "Deleted!" or the error reported by the remote service).
Nothing is retried: call the tool again if an operation failed.
`

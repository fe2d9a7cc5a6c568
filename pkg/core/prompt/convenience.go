package prompt

// Convenience functions for common prompt operations

// GetDiscussionPrompt returns the system prompt for a discussion mode
// ("normal" or "adversarial").
func GetDiscussionPrompt(mode string) (string, error) {
	id := "discussion." + mode
	return Get().GetSystemPrompt(id)
}

// GetPersonaPrompt returns a persona-stage system prompt by name.
func GetPersonaPrompt(name string) (string, error) {
	id := "persona." + name
	return Get().GetSystemPrompt(id)
}

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	// Persona generation
	PersonaSynthesis string

	// Focus group discussion
	DiscussionNormal      string
	DiscussionAdversarial string
	DiscussionSummary     string

	// Knowledge graph
	GraphExtraction string
}{
	PersonaSynthesis: "persona.synthesis",

	DiscussionNormal:      "discussion.normal",
	DiscussionAdversarial: "discussion.adversarial",
	DiscussionSummary:     "discussion.summary",

	GraphExtraction: "graph.extraction",
}

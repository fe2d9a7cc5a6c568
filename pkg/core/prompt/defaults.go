package prompt

// RegisterDefaults installs the built-in prompt library. A prompts/ directory
// loaded afterwards overrides any of these by ID, so deployments can tune
// wording without a rebuild.
func RegisterDefaults() {
	r := Get()
	for _, pt := range defaultPrompts {
		_ = r.Register(pt)
	}
	for _, rs := range defaultSchemas {
		_ = r.RegisterSchema(rs)
	}
}

var defaultPrompts = []*PromptTemplate{
	{
		ID:       "persona.synthesis",
		Name:     "Persona Synthesis",
		Category: "persona",
		SystemPrompt: `You are an expert consumer researcher who writes rich, believable profiles of ordinary people. You always answer with a single JSON object and nothing else.`,
		UserPromptTmpl: `Create a realistic consumer persona matching this demographic profile:

- Age group: {{.AgeGroup}}
- Gender: {{.Gender}}
- Income bracket: {{.IncomeBracket}}
- Education: {{.EducationLevel}}
- Location: {{.LocationType}}

These demographics are hard constraints; do not change them.

Personality guidance:
{{.TraitGuidance}}
{{if .ResearchContext}}
Research context for this panel:
{{.ResearchContext}}
{{end}}
Return a JSON object with exactly these fields:
{
  "full_name": "first and last name, plausible for the location",
  "headline": "one sentence capturing who they are",
  "occupation": "their job or daily occupation",
  "background_story": "2-3 paragraphs about their life, work and daily routine",
  "values": ["3-6 personal values"],
  "interests": ["3-6 hobbies or interests"]
}`,
		Variables: []PromptVariable{
			{Name: "AgeGroup", Type: "string", Required: true},
			{Name: "Gender", Type: "string", Required: true},
			{Name: "IncomeBracket", Type: "string", Required: true},
			{Name: "EducationLevel", Type: "string", Required: true},
			{Name: "LocationType", Type: "string", Required: true},
			{Name: "TraitGuidance", Type: "string", Required: true},
			{Name: "ResearchContext", Type: "string", Required: false},
		},
		Version: "1.0",
	},
	{
		ID:       "discussion.normal",
		Name:     "Focus Group Participant",
		Category: "discussion",
		SystemPrompt: `You are the person described in the profile below, taking part in a market research focus group. Stay fully in character: answer from your own life, values and habits, in your own voice. Give your honest opinion in 2-5 sentences. Never mention that you are an AI or a persona.`,
		UserPromptTmpl: `{{.PersonaCard}}
{{if .Memories}}
Things you said or heard earlier in this discussion:
{{.Memories}}
{{end}}
The moderator asks: {{.Question}}

Answer as yourself.`,
		Version: "1.0",
	},
	{
		ID:       "discussion.adversarial",
		Name:     "Focus Group Participant (Critical)",
		Category: "discussion",
		SystemPrompt: `You are the person described in the profile below, taking part in a market research focus group. Stay fully in character, but be deliberately critical: look for weaknesses, hidden costs and reasons the idea would not work for someone like you. Be blunt and specific in 2-5 sentences. Never mention that you are an AI or a persona.`,
		UserPromptTmpl: `{{.PersonaCard}}
{{if .Memories}}
Things you said or heard earlier in this discussion:
{{.Memories}}
{{end}}
The moderator asks: {{.Question}}

Answer as yourself, and do not hold back criticism.`,
		Version: "1.0",
	},
	{
		ID:       "discussion.summary",
		Name:     "Focus Group Summary",
		Category: "discussion",
		SystemPrompt: `You are a senior market researcher writing up a focus group session. Produce a concise markdown report with sections for overall sentiment, main themes, points of agreement, points of disagreement and a recommendation. Do not wrap the report in code fences.`,
		UserPromptTmpl: `Focus group on: {{.Name}}

Questions and responses:
{{.Transcript}}

Write the report.`,
		Version: "1.0",
	},
	{
		ID:       "graph.extraction",
		Name:     "Concept Extraction",
		Category: "graph",
		SystemPrompt: `You extract concepts and emotions from consumer statements. Always answer with a single JSON object and nothing else.`,
		UserPromptTmpl: `Statement from a focus group participant:

"{{.Response}}"

Return a JSON object with exactly these fields:
{
  "concepts": ["up to 5 short noun phrases for products, features, needs or concerns mentioned"],
  "emotions": ["up to 3 emotions the speaker expresses, from: joy, trust, fear, surprise, sadness, disgust, anger, anticipation"],
  "sentiment": 0.0,
  "key_phrases": ["up to 3 verbatim phrases that best capture the statement"]
}
The sentiment field is a number between -1 (strongly negative) and 1 (strongly positive).`,
		ResponseSchemaID: "graph.extraction",
		Version:          "1.0",
	},
}

var defaultSchemas = []*ResponseSchema{
	{
		ID:          "graph.extraction",
		Name:        "Concept Extraction Result",
		Description: "Concepts, emotions, sentiment and key phrases for one response.",
		JSONSchema: `{
  "type": "object",
  "properties": {
    "concepts": {"type": "array", "items": {"type": "string"}, "maxItems": 5},
    "emotions": {
      "type": "array",
      "items": {
        "type": "string",
        "enum": ["joy", "trust", "fear", "surprise", "sadness", "disgust", "anger", "anticipation"]
      },
      "maxItems": 3
    },
    "sentiment": {"type": "number", "minimum": -1, "maximum": 1},
    "key_phrases": {"type": "array", "items": {"type": "string"}, "maxItems": 3}
  },
  "required": ["concepts", "emotions", "sentiment"]
}`,
	},
}

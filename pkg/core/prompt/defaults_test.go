package prompt

import (
	"strings"
	"testing"
)

func TestRegisterDefaultsBindsExtractionSchema(t *testing.T) {
	RegisterDefaults()

	pt, err := Get().GetPrompt(PromptIDs.GraphExtraction)
	if err != nil {
		t.Fatalf("get extraction prompt: %v", err)
	}
	if pt.ResponseSchemaID == "" {
		t.Fatal("extraction prompt has no response schema reference")
	}

	schema, err := Get().GetSchema(pt.ResponseSchemaID)
	if err != nil {
		t.Fatalf("get schema %q: %v", pt.ResponseSchemaID, err)
	}
	for _, field := range []string{"concepts", "emotions", "sentiment", "key_phrases"} {
		if !strings.Contains(schema.JSONSchema, field) {
			t.Errorf("schema missing field %q", field)
		}
	}
}

func TestDiscussionAndPersonaPromptLookup(t *testing.T) {
	RegisterDefaults()

	for _, mode := range []string{"normal", "adversarial"} {
		p, err := GetDiscussionPrompt(mode)
		if err != nil {
			t.Fatalf("discussion prompt %q: %v", mode, err)
		}
		if p == "" {
			t.Fatalf("discussion prompt %q is empty", mode)
		}
	}
	if _, err := GetDiscussionPrompt("socratic"); err == nil {
		t.Fatal("expected error for unknown discussion mode")
	}

	p, err := GetPersonaPrompt("synthesis")
	if err != nil {
		t.Fatalf("persona prompt: %v", err)
	}
	if !strings.Contains(p, "consumer researcher") {
		t.Fatalf("unexpected persona system prompt: %q", p)
	}
}

package rag

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

func TestBuildPromptIncludesDocumentBlocks(t *testing.T) {
	results := []ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "handbook.pdf", Text: "Vacation policy details."},
		{DocumentID: uuid.New(), DocumentName: "specs.docx", Text: "System requires 8GB RAM."},
	}
	p := BuildPrompt("what is the vacation policy?", nil, results)

	if !strings.Contains(p.System, "[Document: handbook.pdf]\nVacation policy details.") {
		t.Fatalf("system prompt missing first document block:\n%s", p.System)
	}
	if !strings.Contains(p.System, "[Document: specs.docx]\nSystem requires 8GB RAM.") {
		t.Fatalf("system prompt missing second document block:\n%s", p.System)
	}
	if !strings.Contains(p.System, "AVAILABLE DOCUMENTS FOR CITATION: handbook.pdf, specs.docx") {
		t.Fatalf("system prompt missing citation list:\n%s", p.System)
	}
	if p.User != "what is the vacation policy?" {
		t.Fatalf("user prompt: want query verbatim, got %q", p.User)
	}
}

func TestBuildPromptDeduplicatesDocumentNames(t *testing.T) {
	docID := uuid.New()
	results := []ScoredChunk{
		{DocumentID: docID, DocumentName: "handbook.pdf", Text: "part one"},
		{DocumentID: docID, DocumentName: "handbook.pdf", Text: "part two"},
	}
	p := BuildPrompt("q", nil, results)
	if len(p.DocumentNames) != 1 || p.DocumentNames[0] != "handbook.pdf" {
		t.Fatalf("document names: want=[handbook.pdf] got=%v", p.DocumentNames)
	}
}

func TestBuildPromptPreservesContextOrder(t *testing.T) {
	results := []ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "first.txt", Text: "a"},
		{DocumentID: uuid.New(), DocumentName: "second.txt", Text: "b"},
	}
	p := BuildPrompt("q", nil, results)
	if len(p.DocumentNames) != 2 || p.DocumentNames[0] != "first.txt" || p.DocumentNames[1] != "second.txt" {
		t.Fatalf("document names out of order: %v", p.DocumentNames)
	}
	first := strings.Index(p.System, "[Document: first.txt]")
	second := strings.Index(p.System, "[Document: second.txt]")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("context blocks out of order: first=%d second=%d", first, second)
	}
}

func TestBuildPromptRendersHistory(t *testing.T) {
	history := []*types.Message{
		{Role: types.RoleUser, Content: "earlier question"},
		{Role: types.RoleAssistant, Content: "earlier answer"},
	}
	p := BuildPrompt("q", history, nil)
	if !strings.Contains(p.System, "User: earlier question\nAssistant: earlier answer") {
		t.Fatalf("system prompt missing history:\n%s", p.System)
	}
}

func TestBuildPromptNamesUnknownDocuments(t *testing.T) {
	p := BuildPrompt("q", nil, []ScoredChunk{{DocumentID: uuid.New(), Text: "orphan text"}})
	if !strings.Contains(p.System, "[Document: Unknown Document]") {
		t.Fatalf("unnamed chunk not labeled:\n%s", p.System)
	}
}

func TestBuildPromptDemandsCitations(t *testing.T) {
	p := BuildPrompt("q", nil, nil)
	for _, want := range []string{
		"ONLY on the provided context",
		"START EVERY RESPONSE by citing",
		"I don't have enough information",
	} {
		if !strings.Contains(p.System, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
}

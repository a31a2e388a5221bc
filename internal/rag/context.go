package rag

import (
	"fmt"
	"strings"

	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// NoDocumentsReply is returned verbatim when retrieval finds nothing. The
// model is never called in that case so the answer cannot hallucinate.
const NoDocumentsReply = "I don't have any documents uploaded to search through yet. " +
	"I'd be happy to help once you upload some documents!"

const systemPreamble = `You are a helpful AI assistant that answers questions based ONLY on the provided context from uploaded documents.

CRITICAL CITATION REQUIREMENTS:
1. START EVERY RESPONSE by citing the relevant sources: "Based on [Document Name] and [Document Name]..."
2. Answer questions ONLY using information from the provided context
3. If the context doesn't contain enough information to answer the question, clearly state "I don't have enough information in the available documents to answer this question"
4. Do NOT make up information or use general knowledge beyond what's in the context
5. Be accurate and stick to the facts provided in the context
6. ALWAYS cite sources throughout your response using formats like:
   - "According to [Document Name], ..."
   - "As mentioned in [Document Name], ..."
   - "The [Document Name] states that..."
7. If you're uncertain about any details, mention your uncertainty but still cite the source
8. Provide helpful, clear answers when the information is available in the context

RESPONSE FORMAT:
- Start with: "Based on [Document Name(s)], ..."
- Continue with source citations throughout
- End with confidence level if uncertain

Remember: ALWAYS start with source citation and maintain citations throughout. It's better to humbly say "I don't know" than to provide inaccurate information.`

// Prompt is a fully assembled model request.
type Prompt struct {
	System string
	User   string
	// DocumentNames lists the distinct source documents in context order.
	// Callers surface these as citations alongside the answer.
	DocumentNames []string
}

// BuildPrompt assembles the system and user messages from retrieved chunks
// and recent conversation history. Pure function, no I/O.
func BuildPrompt(query string, history []*types.Message, results []ScoredChunk) Prompt {
	var contextParts []string
	var names []string
	seen := map[string]bool{}
	for _, r := range results {
		name := r.DocumentName
		if name == "" {
			name = "Unknown Document"
		}
		contextParts = append(contextParts, fmt.Sprintf("[Document: %s]\n%s", name, r.Text))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var historyParts []string
	for _, m := range history {
		switch m.Role {
		case types.RoleUser:
			historyParts = append(historyParts, "User: "+m.Content)
		case types.RoleAssistant:
			historyParts = append(historyParts, "Assistant: "+m.Content)
		}
	}

	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nCONVERSATION HISTORY:\n")
	b.WriteString(strings.Join(historyParts, "\n"))
	b.WriteString("\n\nAVAILABLE DOCUMENTS FOR CITATION: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nCONTEXT FROM DOCUMENTS:\n")
	b.WriteString(strings.Join(contextParts, "\n\n"))
	b.WriteString("\n\nREMEMBER: You MUST start your response with source citations like \"Based on [Document Name] and [Document Name]...\" and continue citing sources throughout your response.")

	return Prompt{
		System:        b.String(),
		User:          query,
		DocumentNames: names,
	}
}

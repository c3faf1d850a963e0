package generation

import (
	"fmt"

	"github.com/phrazzld/inkwell/internal/domain"
)

const defaultGuidelines = "Return only the requested content and avoid meta prefaces."

var guidelines = map[domain.ContentType]string{
	domain.ContentTypeBlogPostOutline:    "Start directly with a working title, then H2 sections each with 3–5 bullets. No meta prefaces.",
	domain.ContentTypeBlogPost:           "Write a complete blog with H1 title, intro, several H2/H3 sections, and a conclusion. No meta prefaces.",
	domain.ContentTypeProductDescription: "Provide a concise product description with features and benefits. No meta prefaces.",
	domain.ContentTypeSocialMediaCaption: "Return a single caption under 280 characters, catchy and concise. No meta prefaces.",
	domain.ContentTypeEmailSubjectLine:   "Return 5 short subject lines, each on its own line. No meta prefaces.",
	domain.ContentTypeAdCopy:             "Return concise ad copy (headline + body). No meta prefaces.",
}

// Guidelines returns the writing instructions for a content type.
func Guidelines(ct domain.ContentType) string {
	if g, ok := guidelines[ct]; ok {
		return g
	}
	return defaultGuidelines
}

// ChatPrompts returns the system and user messages for chat-style providers.
func ChatPrompts(req Request) (system, user string) {
	system = fmt.Sprintf("You are a writing assistant. Return only the %s. %s", req.ContentType, Guidelines(req.ContentType))
	user = fmt.Sprintf("Topic: %q.", req.Prompt)
	return system, user
}

// SinglePrompt returns one combined prompt for providers without roles.
func SinglePrompt(req Request) string {
	return fmt.Sprintf("Produce %s for topic %q. %s Output only the content.",
		req.ContentType, req.Prompt, Guidelines(req.ContentType))
}

// Package proposal turns a job posting plus a user's search profile into
// proposal text. Generation is delegated to an LLM provider; when the
// provider fails and fallback is enabled, a deterministic template keeps the
// submission pipeline moving.
package proposal

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/lanceworks/autobid-cli/internal/model"
)

// Request carries everything the generator needs for one proposal.
type Request struct {
	JobTitle       string
	JobDescription string
	Profile        string // freelancer's profile text, may be empty
	Directives     string // extra instructions appended to the prompt, may be empty
	Language       model.Language
}

// Generator produces proposal text for a job posting.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const systemPrompt = "You are an experienced freelancer writing concise, specific project proposals. " +
	"Reference concrete details from the job description. Never invent credentials. " +
	"Keep the proposal under 200 words and end with a short question about the project."

// BuildPrompt assembles the user prompt. With a profile present the prompt is
// personalized; without one it falls back to a generic pitch built from the
// posting alone.
func BuildPrompt(req Request) string {
	var b strings.Builder

	if req.Profile != "" {
		b.WriteString("My profile:\n")
		b.WriteString(req.Profile)
		b.WriteString("\n\n")
		b.WriteString("Write a proposal for the following job, connecting my experience to its requirements.\n\n")
	} else {
		b.WriteString("Write a proposal for the following job.\n\n")
	}

	fmt.Fprintf(&b, "Job title: %s\n\nJob description:\n%s\n", req.JobTitle, req.JobDescription)

	if name := languageName(req.Language); name != "" {
		fmt.Fprintf(&b, "\nWrite the proposal in %s.\n", name)
	}

	if req.Directives != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(req.Directives)
		b.WriteString("\n")
	}

	return b.String()
}

// languageName maps a detected language to its English display name for the
// prompt. Unknown languages produce no constraint, letting the model mirror
// the posting.
func languageName(lang model.Language) string {
	if lang == "" || lang == model.LangUnknown {
		return ""
	}
	tag, err := language.Parse(string(lang))
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(tag)
}

// FallbackText returns the deterministic proposal used when generation fails
// and fallback is enabled. Spanish postings get the Spanish variant.
func FallbackText(req Request) string {
	if req.Language == model.LangSpanish {
		return fmt.Sprintf(
			"Hola, acabo de leer su publicación %q y me interesa mucho el proyecto. "+
				"Tengo experiencia directa en este tipo de trabajo y puedo comenzar de inmediato. "+
				"¿Podríamos conversar sobre los detalles y el alcance? Quedo atento a su respuesta.",
			req.JobTitle)
	}
	return fmt.Sprintf(
		"Hello, I just read your posting %q and I am very interested in the project. "+
			"I have hands-on experience with this kind of work and can start right away. "+
			"Could we discuss the details and scope? Looking forward to hearing from you.",
		req.JobTitle)
}

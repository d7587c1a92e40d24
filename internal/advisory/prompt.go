// Package advisory builds the prompts behind each farmer-facing tool and
// forwards them to the generative model.
package advisory

import (
	"strings"

	"github.com/dvloznov/agritool/internal/ai"
)

// Prompt is one advisory request: a fixed role instruction, the response
// language and the farmer's input, optionally with an image.
type Prompt struct {
	System   string
	Language Language
	Input    string
	Image    *ai.Image
}

// Text renders the prompt as sent to the model:
//
//	<system>
//
//	<language directive>
//
//	User: <input>
func (p Prompt) Text() string {
	var b strings.Builder
	b.WriteString(p.System)
	b.WriteString("\n\n")
	b.WriteString(p.Language.Directive())
	b.WriteString("\n\nUser: ")
	b.WriteString(p.Input)
	return b.String()
}

// Request converts the prompt into a model request.
func (p Prompt) Request() ai.Request {
	return ai.Request{Prompt: p.Text(), Image: p.Image}
}

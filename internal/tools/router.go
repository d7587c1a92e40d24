package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/rs/zerolog"
)

// Router classifies free-text commands into a tool using the model.
type Router struct {
	model ai.Model
	log   zerolog.Logger
}

// NewRouter creates a router that asks model to classify commands.
func NewRouter(model ai.Model, log zerolog.Logger) *Router {
	return &Router{model: model, log: log}
}

// Route returns the tool command asks for. The result is always a member
// of the enumeration: when the model fails, Default is returned with an
// error wrapping domain.ErrExternalService; when its answer names zero or
// several tools, Default is returned with domain.ErrAmbiguousRouting.
func (r *Router) Route(ctx context.Context, command string) (ID, error) {
	answer, err := r.model.Generate(ctx, ai.Request{Prompt: ClassificationPrompt(command)})
	if err != nil {
		r.log.Warn().Err(err).Str("command", command).Msg("routing call failed, using default tool")
		return Default, fmt.Errorf("Route: %w", err)
	}

	id, ok := Match(answer)
	if !ok {
		r.log.Info().Str("command", command).Str("answer", answer).Msg("ambiguous routing, using default tool")
		return Default, fmt.Errorf("Route: %w: %q", domain.ErrAmbiguousRouting, strings.TrimSpace(answer))
	}
	return id, nil
}

// ClassificationPrompt lists every tool identifier and the command.
func ClassificationPrompt(command string) string {
	names := make([]string, len(all))
	for i, id := range all {
		names[i] = string(id)
	}
	return "Classify the farmer's command into exactly one of these tools: " +
		strings.Join(names, ", ") + ".\n" +
		"Reply with the tool name only.\n\n" +
		"Command: " + command
}

// Match returns the single tool identifier contained in text, using
// case-sensitive substring matching. It reports false when zero or more
// than one identifier occurs.
func Match(text string) (ID, bool) {
	var found ID
	matches := 0
	for _, id := range all {
		if strings.Contains(text, string(id)) {
			found = id
			matches++
		}
	}
	if matches != 1 {
		return Default, false
	}
	return found, true
}

package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/agritool/internal/ai"
	"github.com/rs/zerolog"
)

// hyderabadContacts is served instead of a model answer for Hyderabad.
const hyderabadContacts = `Agriculture contacts for Hyderabad:
- Commissionerate of Agriculture, Telangana: Basheerbagh, Hyderabad 500001
- Krishi Vigyan Kendra, PJTSAU: Rajendranagar, Hyderabad 500030
- District Agriculture Officer, Hyderabad: Collectorate, Nampally
- Kisan Call Centre (toll free): 1800-180-1551`

// Advisor forwards advisory prompts to the model.
type Advisor struct {
	model ai.Model
	log   zerolog.Logger
}

// NewAdvisor creates an advisor backed by model.
func NewAdvisor(model ai.Model, log zerolog.Logger) *Advisor {
	return &Advisor{model: model, log: log}
}

// Ask sends p to the model and returns the answer unmodified.
func (a *Advisor) Ask(ctx context.Context, p Prompt) (string, error) {
	answer, err := a.model.Generate(ctx, p.Request())
	if err != nil {
		return "", fmt.Errorf("Ask: %w", err)
	}
	return answer, nil
}

// Contacts answers a contact lookup. Hyderabad gets a fixed contact sheet
// without a model call; every other location goes through Ask.
func (a *Advisor) Contacts(ctx context.Context, lang Language, location string) (string, error) {
	if IsHyderabad(location) {
		a.log.Debug().Str("location", location).Msg("serving static contact sheet")
		return hyderabadContacts, nil
	}
	p, err := Contacts(lang, location)
	if err != nil {
		return "", err
	}
	return a.Ask(ctx, p)
}

// IsHyderabad reports whether location selects the static contact sheet.
func IsHyderabad(location string) bool {
	return strings.EqualFold(strings.TrimSpace(location), "hyderabad")
}

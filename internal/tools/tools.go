// Package tools defines the closed set of farmer-facing tools and the
// router that maps free-form commands onto them.
package tools

import (
	"fmt"

	"github.com/dvloznov/agritool/internal/domain"
)

// ID identifies one tool. The zero value is not a valid tool.
type ID string

const (
	Chatbot          ID = "chatbot"
	DiseaseDetection ID = "disease_detection"
	Weather          ID = "weather"
	SoilAdvice       ID = "soil_advice"
	MarketPrices     ID = "market_prices"
	ExpenseTracker   ID = "expense_tracker"
	CropCalendar     ID = "crop_calendar"
	WaterCalculator  ID = "water_calculator"
	Schemes          ID = "schemes"
	Contacts         ID = "contacts"
)

// Default is the tool a new or logged-in session starts on, and the
// fallback destination for failed routing.
const Default = Chatbot

var all = []ID{
	Chatbot,
	DiseaseDetection,
	Weather,
	SoilAdvice,
	MarketPrices,
	ExpenseTracker,
	CropCalendar,
	WaterCalculator,
	Schemes,
	Contacts,
}

var labels = map[ID]string{
	Chatbot:          "AI Farming Chatbot",
	DiseaseDetection: "Crop & Disease Detection",
	Weather:          "Weather Advisory",
	SoilAdvice:       "Soil & Fertilizer Advice",
	MarketPrices:     "Market Prices",
	ExpenseTracker:   "Expense Tracker",
	CropCalendar:     "Crop Calendar",
	WaterCalculator:  "Water Calculator",
	Schemes:          "Govt. Schemes",
	Contacts:         "Contact Agri Officer",
}

// All returns every tool in menu order. The first entry is Default.
func All() []ID {
	out := make([]ID, len(all))
	copy(out, all)
	return out
}

// Valid reports whether id is a member of the enumeration.
func (id ID) Valid() bool {
	_, ok := labels[id]
	return ok
}

// Label returns the menu title for id.
func (id ID) Label() string {
	return labels[id]
}

func (id ID) String() string {
	return string(id)
}

// Parse converts s to a tool ID. Matching is exact and case-sensitive.
func Parse(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: unknown tool %q", domain.ErrValidation, s)
	}
	return id, nil
}

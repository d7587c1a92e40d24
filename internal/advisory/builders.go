package advisory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/weather"
)

// Role instructions for each tool.
const (
	ChatSystem     = "You are an intelligent farming assistant."
	DiagnoseSystem = "Analyze this image and identify crop disease, pest, or soil issue. " +
		"Suggest treatment including pesticides, fertilizers, and best practices."
	WeatherSystem  = "Summarize the weather advisory:"
	SoilSystem     = "You are a soil nutrition expert."
	CalendarSystem = "You are a crop planning advisor for Indian farmers."
	WaterSystem    = "You are an irrigation planning expert."
	MarketSystem   = "You are an agricultural market advisor."
	SchemesSystem  = "You help farmers find schemes."
	ContactsSystem = "You are an agriculture contact assistant."
)

// DefaultLocation is used when the farmer has no location on file.
const DefaultLocation = "India"

// Soil input bounds.
const (
	MinPH       = 3.5
	MaxPH       = 9.0
	MaxNutrient = 1000
)

// irrigationThresholdMM is the rainfall above which irrigation is postponed.
const irrigationThresholdMM = 2.0

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	return nil
}

// Chat builds the free-form farming question prompt.
func Chat(lang Language, question string) (Prompt, error) {
	if err := required("question", question); err != nil {
		return Prompt{}, err
	}
	return Prompt{System: ChatSystem, Language: lang, Input: strings.TrimSpace(question)}, nil
}

// Diagnose builds the crop image analysis prompt.
func Diagnose(lang Language, img ai.Image) (Prompt, error) {
	if len(img.Data) == 0 {
		return Prompt{}, fmt.Errorf("%w: image is required", domain.ErrValidation)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return Prompt{}, fmt.Errorf("%w: unsupported image type %q", domain.ErrValidation, img.MIMEType)
	}
	return Prompt{System: DiagnoseSystem, Language: lang, Image: &img}, nil
}

// IrrigationHint is the rule-based advice attached to a weather report.
func IrrigationHint(precipMM float64) string {
	if precipMM > irrigationThresholdMM {
		return "Delay irrigation."
	}
	return "Consider irrigation."
}

// WeatherAdvisory renders the report for the model to summarize.
func WeatherAdvisory(lang Language, r *weather.Report) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather in %s:\n", r.Location)
	fmt.Fprintf(&b, "- Temperature: %s°C\n", num(r.Current.TempC))
	fmt.Fprintf(&b, "- Condition: %s\n", r.Current.Condition)
	fmt.Fprintf(&b, "- Humidity: %d%%\n", r.Current.Humidity)
	fmt.Fprintf(&b, "- Wind: %s km/h\n", num(r.Current.WindKPH))
	fmt.Fprintf(&b, "- Rainfall: %s mm\n", num(r.Current.PrecipMM))
	if len(r.Days) > 0 {
		b.WriteString("\nForecast:\n")
		for _, d := range r.Days {
			fmt.Fprintf(&b, "- %s: %s, %s to %s°C, %d%% chance of rain\n",
				d.Date, d.Condition, num(d.MinTempC), num(d.MaxTempC), d.ChanceOfRain)
		}
	}
	b.WriteString("\nAdvice:\n")
	fmt.Fprintf(&b, "- %s\n", IrrigationHint(r.Current.PrecipMM))
	b.WriteString("- Monitor for fungal infections in humidity.")

	return Prompt{System: WeatherSystem, Language: lang, Input: b.String()}
}

// SoilInput is a soil test result.
type SoilInput struct {
	PH         float64 `json:"ph"`
	Nitrogen   int     `json:"nitrogen"`
	Phosphorus int     `json:"phosphorus"`
	Potassium  int     `json:"potassium"`
}

// Validate checks pH and nutrient ranges.
func (s SoilInput) Validate() error {
	if math.IsNaN(s.PH) || s.PH < MinPH || s.PH > MaxPH {
		return fmt.Errorf("%w: pH must be between %s and %s", domain.ErrValidation, num(MinPH), num(MaxPH))
	}
	for name, v := range map[string]int{"nitrogen": s.Nitrogen, "phosphorus": s.Phosphorus, "potassium": s.Potassium} {
		if v < 0 || v > MaxNutrient {
			return fmt.Errorf("%w: %s must be between 0 and %d ppm", domain.ErrValidation, name, MaxNutrient)
		}
	}
	return nil
}

// Soil builds the fertilizer plan prompt.
func Soil(lang Language, in SoilInput) (Prompt, error) {
	if err := in.Validate(); err != nil {
		return Prompt{}, err
	}
	input := fmt.Sprintf("Soil has pH %s, N=%d, P=%d, K=%d. Suggest fertilizer plan including organic options.",
		num(in.PH), in.Nitrogen, in.Phosphorus, in.Potassium)
	return Prompt{System: SoilSystem, Language: lang, Input: input}, nil
}

// CropCalendar builds the what-to-sow prompt for a month.
func CropCalendar(lang Language, location string, month time.Month) (Prompt, error) {
	if month < time.January || month > time.December {
		return Prompt{}, fmt.Errorf("%w: invalid month %d", domain.ErrValidation, month)
	}
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultLocation
	}
	input := fmt.Sprintf("I am a farmer in %s. What crops should I grow in %s?", location, month)
	return Prompt{System: CalendarSystem, Language: lang, Input: input}, nil
}

// WaterInput describes a field for irrigation planning.
type WaterInput struct {
	Crop       string  `json:"crop"`
	AreaAcres  float64 `json:"area_acres"`
	SoilType   string  `json:"soil_type"`
	Stage      string  `json:"stage"`
	RainfallMM float64 `json:"rainfall_mm"`
}

// Water builds the irrigation requirement prompt.
func Water(lang Language, in WaterInput) (Prompt, error) {
	if err := required("crop", in.Crop); err != nil {
		return Prompt{}, err
	}
	if !(in.AreaAcres > 0) || math.IsInf(in.AreaAcres, 0) {
		return Prompt{}, fmt.Errorf("%w: area must be greater than zero", domain.ErrValidation)
	}
	if in.RainfallMM < 0 || math.IsNaN(in.RainfallMM) {
		return Prompt{}, fmt.Errorf("%w: rainfall cannot be negative", domain.ErrValidation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Crop: %s, area %s acres", strings.TrimSpace(in.Crop), num(in.AreaAcres))
	if s := strings.TrimSpace(in.SoilType); s != "" {
		fmt.Fprintf(&b, ", %s soil", s)
	}
	if s := strings.TrimSpace(in.Stage); s != "" {
		fmt.Fprintf(&b, ", %s stage", s)
	}
	fmt.Fprintf(&b, ", expected rainfall %s mm this week. ", num(in.RainfallMM))
	b.WriteString("Estimate the weekly irrigation water requirement in litres and suggest a watering schedule.")
	return Prompt{System: WaterSystem, Language: lang, Input: b.String()}, nil
}

// Market builds the sell-or-hold prompt around the reference price for crop.
func Market(lang Language, crop, location string) (Prompt, error) {
	if err := required("crop", crop); err != nil {
		return Prompt{}, err
	}
	price, ok := LookupPrice(crop)
	if !ok {
		return Prompt{}, fmt.Errorf("%w: no reference price for %q", domain.ErrValidation, strings.TrimSpace(crop))
	}
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultLocation
	}
	input := fmt.Sprintf("The reference market price for %s is ₹%d per quintal. I am a farmer in %s. "+
		"Should I sell now or hold, and where can I get a better price?", price.Crop, price.PerQuintal, location)
	return Prompt{System: MarketSystem, Language: lang, Input: input}, nil
}

// Schemes builds the government scheme lookup prompt.
func Schemes(lang Language, keyword string) (Prompt, error) {
	if err := required("keyword", keyword); err != nil {
		return Prompt{}, err
	}
	return Prompt{System: SchemesSystem, Language: lang, Input: strings.TrimSpace(keyword)}, nil
}

// Contacts builds the agriculture contact lookup prompt.
func Contacts(lang Language, location string) (Prompt, error) {
	if err := required("location", location); err != nil {
		return Prompt{}, err
	}
	input := fmt.Sprintf("Contact info for agriculture officer, KVKs, helplines in %s. %s",
		strings.TrimSpace(location), lang.Directive())
	return Prompt{System: ContactsSystem, Language: lang, Input: input}, nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

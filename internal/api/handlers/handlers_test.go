package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/agritool/internal/accounts"
	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/jobs/inmemory"
	"github.com/dvloznov/agritool/internal/ledger"
	"github.com/dvloznov/agritool/internal/logger"
	"github.com/dvloznov/agritool/internal/profiles"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/speech"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/dvloznov/agritool/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeModel answers routing prompts with route and everything else with
// advice, recording each prompt.
type fakeModel struct {
	mu      sync.Mutex
	route   string
	err     error
	prompts []string
}

func (m *fakeModel) Generate(ctx context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, req.Prompt)
	if m.err != nil {
		return "", m.err
	}
	if strings.HasPrefix(req.Prompt, "Classify") {
		return m.route, nil
	}
	return "advice", nil
}

func (m *fakeModel) set(route string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = route
	m.err = err
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *fakeModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type fakeWeather struct {
	mu        sync.Mutex
	locations []string
	err       error
}

func (f *fakeWeather) Forecast(ctx context.Context, location string) (*weather.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, location)
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Report{
		Location: location,
		Current:  weather.Conditions{TempC: 31, Condition: "Sunny", Humidity: 60, PrecipMM: 0},
	}, nil
}

func (f *fakeWeather) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locations...)
}

func (f *fakeWeather) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeLocator struct {
	city string
}

func (f fakeLocator) City(ctx context.Context, ip string) (string, error) {
	if f.city == "" {
		return "", errors.New("no city")
	}
	return f.city, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, audio speech.Audio, lang advisory.Language) (string, error) {
	return f.text, f.err
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, text string, lang advisory.Language) (speech.Audio, error) {
	return speech.Audio{MIMEType: "audio/wav", Data: speech.EncodeWAV(make([]byte, 480), speech.DefaultPCM)}, nil
}

type failingProfiles struct {
	ProfileStore
}

func (failingProfiles) Save(ctx context.Context, username string, p domain.Profile) error {
	return fmt.Errorf("write: %w: disk full", domain.ErrPersistence)
}

type fixture struct {
	srv     *httptest.Server
	client  *http.Client
	model   *fakeModel
	weather *fakeWeather
	cache   *speech.Cache
	blobs   *blob.MemoryStore
}

type fixtureOption func(*Services)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	blobs := blob.NewMemoryStore()
	model := &fakeModel{route: "weather"}
	wx := &fakeWeather{}
	cache := speech.NewCache(blobs, fakeSynth{})
	log := logger.NewWithWriter(io.Discard)
	jobStore := inmemory.NewStore()

	svc := Services{
		Accounts:      accounts.NewStoreWithCost(blobs, bcrypt.MinCost),
		Profiles:      profiles.NewStore(blobs),
		Ledger:        ledger.New(blobs),
		Router:        tools.NewRouter(model, log),
		Advisor:       advisory.NewAdvisor(model, log),
		Weather:       wx,
		Geo:           fakeLocator{},
		Transcriber:   fakeTranscriber{text: "weather tomorrow"},
		Audio:         cache,
		Publisher:     inmemory.NewQueue(10, 1, 0, jobStore),
		Jobs:          jobStore,
		MaxAudioBytes: 1024,
		Log:           log,
	}
	for _, opt := range opts {
		opt(&svc)
	}

	mux, err := NewMux(svc)
	require.NoError(t, err)

	h := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Session(session.NewStore(time.Hour), middleware.CookieOptions{Name: "agritool_session"}),
	)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &fixture{
		srv:     srv,
		client:  &http.Client{Jar: jar},
		model:   model,
		weather: wx,
		cache:   cache,
		blobs:   blobs,
	}
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (f *fixture) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/signup",
		map[string]string{"username": "ravi", "display_name": "Ravi", "password": "pass123"}, nil))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/login",
		map[string]string{"username": "ravi", "password": "pass123"}, nil))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSignupLoginLogout(t *testing.T) {
	f := newFixture(t)

	var view sessionView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/session", nil, &view))
	assert.False(t, view.Authenticated)
	assert.Len(t, view.Tools, len(tools.All()))

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/signup",
		map[string]string{"username": "ravi", "display_name": "Ravi", "password": "pass123"}, nil))

	// Signing up does not log in.
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/session", nil, &view))
	assert.False(t, view.Authenticated)

	var errBody map[string]string
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/login",
		map[string]string{"username": "ravi", "password": "wrong"}, &errBody))
	assert.Contains(t, errBody["error"], "incorrect password")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/login",
		map[string]string{"username": "nobody", "password": "pass123"}, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/login",
		map[string]string{"username": "ravi", "password": "pass123"}, &view))
	assert.True(t, view.Authenticated)
	assert.Equal(t, "ravi", view.Username)
	assert.Equal(t, "Ravi", view.DisplayName)
	assert.Equal(t, tools.Default, view.ActiveTool)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/login",
		map[string]string{"username": "ravi", "password": "pass123"}, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/logout", nil, &view))
	assert.False(t, view.Authenticated)
	assert.Empty(t, view.Username)
	assert.Zero(t, view.HistoryLength)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/logout", nil, nil))
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/signup",
		map[string]string{"username": "ravi", "display_name": "", "password": "pass123"}, nil))

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/signup",
		map[string]string{"username": "ravi", "display_name": "Ravi", "password": "pass123"}, nil))
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/signup",
		map[string]string{"username": "ravi", "display_name": "Other", "password": "x"}, nil))
}

func TestProtectedRoutesNeedLogin(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/ledger"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPost, "/api/route"},
		{http.MethodPost, "/api/session/tool"},
		{http.MethodPost, "/api/tools/chatbot"},
		{http.MethodPost, "/api/speech/transcribe"},
	} {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, tc.method, tc.path, map[string]string{}, nil), tc.path)
	}
	assert.Zero(t, f.model.calls())
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/login", nil, nil))
}

func TestSessionToolAndLanguage(t *testing.T) {
	f := newFixture(t)

	var view sessionView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/session/language",
		map[string]string{"language": "te"}, &view))
	assert.Equal(t, advisory.Telugu, view.Language)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/session/language",
		map[string]string{"language": "French"}, nil))

	f.login(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/session/tool",
		map[string]string{"tool": "soil_advice"}, &view))
	assert.Equal(t, tools.SoilAdvice, view.ActiveTool)
	assert.Equal(t, advisory.Telugu, view.Language)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/session/tool",
		map[string]string{"tool": "tractor"}, nil))
}

func TestRoute(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var resp routeResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/route",
		map[string]string{"command": "will it rain tomorrow"}, &resp))
	assert.Equal(t, tools.Weather, resp.Tool)
	assert.True(t, resp.Routed)

	var view sessionView
	f.do(t, http.MethodGet, "/api/session", nil, &view)
	assert.Equal(t, tools.Weather, view.ActiveTool)

	f.model.set("weather or soil_advice", nil)
	resp = routeResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/route",
		map[string]string{"command": "help"}, &resp))
	assert.Equal(t, tools.Default, resp.Tool)
	assert.False(t, resp.Routed)
	assert.NotEmpty(t, resp.Warning)
	assert.Empty(t, resp.Error)

	f.model.set("", fmt.Errorf("generate: %w: quota", domain.ErrExternalService))
	resp = routeResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/route",
		map[string]string{"command": "market"}, &resp))
	assert.Equal(t, tools.Default, resp.Tool)
	assert.NotEmpty(t, resp.Error)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/route",
		map[string]string{"command": "  "}, nil))
}

func TestLedger(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var view ledgerView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/ledger", nil, &view))
	assert.Empty(t, view.Records)
	assert.Equal(t, domain.ExpenseCategories, view.Categories["Expense"])

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/ledger", map[string]string{
		"date": "2024-06-01", "type": "Expense", "category": "Seeds", "amount": "500",
	}, nil))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/ledger", map[string]interface{}{
		"date": "2024-06-10", "type": "Income", "category": "Crop Sale", "amount": 2000, "notes": "paddy",
	}, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/ledger", nil, &view))
	require.Len(t, view.Records, 2)
	assert.Equal(t, "Seeds", view.Records[0].Category)
	assert.Equal(t, "1500", view.Summary.Net.String())
	assert.Equal(t, "500", view.Summary.ExpenseByCategory["Seeds"].String())

	for name, body := range map[string]map[string]string{
		"zero amount":      {"type": "Expense", "category": "Seeds", "amount": "0"},
		"bad category":     {"type": "Income", "category": "Seeds", "amount": "10"},
		"bad type":         {"type": "Gift", "category": "Other", "amount": "10"},
		"unparseable date": {"date": "01/06/2024", "type": "Expense", "category": "Seeds", "amount": "10"},
	} {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/ledger", body, nil), name)
	}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/ledger", nil, &view))
	assert.Len(t, view.Records, 2)
}

func TestProfile(t *testing.T) {
	f := newFixture(t, func(s *Services) { s.Geo = fakeLocator{city: "Guntur"} })
	f.login(t)

	var resp struct {
		Profile domain.Profile `json:"profile"`
		Warning string         `json:"warning"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profile", nil, &resp))
	assert.Equal(t, "Guntur", resp.Profile.Location)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/profile",
		domain.Profile{Location: "Warangal", FarmSize: 2.5, Crops: "Rice, Cotton"}, &resp))
	assert.Empty(t, resp.Warning)

	saved := profiles.NewStore(f.blobs).Load(context.Background(), "ravi")
	assert.Equal(t, domain.Profile{Location: "Warangal", FarmSize: 2.5, Crops: "Rice, Cotton"}, saved)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/profile",
		domain.Profile{FarmSize: -1}, nil))
}

func TestProfileSaveFailureKeepsSessionCopy(t *testing.T) {
	f := newFixture(t, func(s *Services) {
		s.Profiles = failingProfiles{ProfileStore: s.Profiles}
	})
	f.login(t)

	var resp struct {
		Profile domain.Profile `json:"profile"`
		Warning string         `json:"warning"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/profile",
		domain.Profile{Location: "Nizamabad"}, &resp))
	assert.NotEmpty(t, resp.Warning)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/profile", nil, &resp))
	assert.Equal(t, "Nizamabad", resp.Profile.Location)
}

func TestRunChatbot(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/chatbot",
		map[string]string{"question": "When to sow paddy?"}, &res))
	assert.Equal(t, "advice", res.Text)
	assert.Empty(t, res.AudioJobID)
	assert.Contains(t, f.model.lastPrompt(), "User: When to sow paddy?")
	assert.Contains(t, f.model.lastPrompt(), "Respond in English.")

	var view sessionView
	f.do(t, http.MethodGet, "/api/session", nil, &view)
	assert.Equal(t, 2, view.HistoryLength)
	assert.Equal(t, tools.Chatbot, view.ActiveTool)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tools/chatbot",
		map[string]string{"question": ""}, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/tools/tractor",
		map[string]string{}, nil))
}

func TestRunToolModelFailure(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.model.set("", fmt.Errorf("generate: %w: unavailable", domain.ErrExternalService))

	var errBody map[string]string
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/api/tools/schemes",
		map[string]string{"keyword": "drip irrigation subsidy"}, &errBody))
	assert.NotContains(t, errBody["error"], "unavailable")
}

func TestRunWithSpeech(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/schemes?speak=true",
		map[string]string{"keyword": "PM-KISAN"}, &res))
	require.NotEmpty(t, res.AudioJobID)

	var job struct {
		Job struct {
			Username string `json:"username"`
			Status   string `json:"status"`
		} `json:"job"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/speech/jobs/"+res.AudioJobID, nil, &job))
	assert.Equal(t, "ravi", job.Job.Username)
	assert.Equal(t, "pending", job.Job.Status)

	var list struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/speech/jobs?status=pending", nil, &list))
	assert.Equal(t, 1, list.Count)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/speech/jobs?status=completed", nil, &list))
	assert.Equal(t, 0, list.Count)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/speech/jobs/missing", nil, nil))
}

func TestRunWeatherUsesProfileLocation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/profile",
		domain.Profile{Location: "Warangal"}, nil))

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/weather", map[string]string{}, &res))
	assert.Equal(t, []string{"Warangal"}, f.weather.seen())
	assert.Contains(t, f.model.lastPrompt(), "Consider irrigation.")

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/weather",
		map[string]string{"location": "Karimnagar"}, nil))
	assert.Equal(t, "Karimnagar", f.weather.seen()[1])

	f.weather.fail(weather.ErrLocationNotFound)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tools/weather",
		map[string]string{"location": "Atlantis"}, nil))
}

func TestRunWeatherWithoutLocation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tools/weather", map[string]string{}, nil))
	assert.Empty(t, f.weather.seen())
}

func TestRunContactsHyderabad(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/contacts",
		map[string]string{"location": "Hyderabad"}, &res))
	assert.Contains(t, res.Text, "Kisan Call Centre")
	assert.Zero(t, f.model.calls())

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/contacts",
		map[string]string{"location": "Guntur"}, &res))
	assert.Equal(t, "advice", res.Text)
	assert.Equal(t, 1, f.model.calls())
}

func TestRunMarketPrices(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/market_prices", map[string]string{}, &res))
	assert.Contains(t, res.Text, "Rice: ₹2183 per quintal")
	assert.Zero(t, f.model.calls())

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/market_prices",
		map[string]string{"crop": "cotton", "location": "Adilabad"}, &res))
	assert.Contains(t, f.model.lastPrompt(), "₹6620")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tools/market_prices",
		map[string]string{"crop": "Saffron"}, nil))
}

func TestRunExpenseTracker(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/ledger", map[string]string{
		"date": "2024-06-01", "type": "Expense", "category": "Seeds", "amount": "500",
	}, nil))

	var res toolResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/expense_tracker", nil, &res))
	assert.Equal(t, "Income ₹0.00, expenses ₹500.00, net ₹-500.00 across 1 records.", res.Text)
	assert.Zero(t, f.model.calls())
}

func TestRunInputValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	cases := map[string]interface{}{
		"soil_advice":       map[string]float64{"ph": 15, "nitrogen": 10, "phosphorus": 10, "potassium": 10},
		"water_calculator":  map[string]interface{}{"crop": "Rice", "area_acres": 0},
		"disease_detection": map[string]string{"mime_type": "text/plain", "image": "aGVsbG8="},
		"crop_calendar":     map[string]string{"month": "Smarch"},
		"schemes":           map[string]string{"keyword": ""},
	}
	for tool, body := range cases {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tools/"+tool, body, nil), tool)
	}
	assert.Zero(t, f.model.calls())
}

func TestRunCropCalendar(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tools/crop_calendar",
		map[string]string{"month": "July", "location": "Nalgonda"}, nil))
	assert.Contains(t, f.model.lastPrompt(), "July")
	assert.Contains(t, f.model.lastPrompt(), "Nalgonda")
}

func TestTranscribe(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	post := func(body []byte) (int, map[string]string) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/speech/transcribe", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "audio/wav")
		resp, err := f.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	code, out := post([]byte("RIFF....WAVE"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "weather tomorrow", out["text"])

	code, _ = post(nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(make([]byte, 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestTranscribeNoSpeech(t *testing.T) {
	f := newFixture(t, func(s *Services) {
		s.Transcriber = fakeTranscriber{err: speech.ErrNoSpeech}
	})
	f.login(t)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/speech/transcribe", strings.NewReader("silence"))
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAudio(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	digest, err := f.cache.Ensure(context.Background(), "Sow after the first rains.", advisory.English)
	require.NoError(t, err)

	resp, err := f.client.Get(f.srv.URL + "/api/speech/audio/" + digest)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF", string(data[:4]))

	missing := speech.Digest(advisory.Hindi, "nothing")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/speech/audio/"+missing, nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/speech/audio/not-a-digest", nil, nil))
}

func TestCheckTotal(t *testing.T) {
	h, err := NewToolsHandler(ToolDeps{}, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)

	partial := make(map[tools.ID]toolFunc)
	for id, fn := range h.funcs {
		partial[id] = fn
	}
	delete(partial, tools.Contacts)

	err = checkTotal(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contacts")
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Month
		wantErr bool
	}{
		{"", time.March, false},
		{"7", time.July, false},
		{"july", time.July, false},
		{"Sep", time.September, false},
		{"13", 0, true},
		{"0", 0, true},
		{"Smarch", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMonth(tt.in, now)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrValidation, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}

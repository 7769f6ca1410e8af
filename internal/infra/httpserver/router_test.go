package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/palmview/internal/application"
	"github.com/bryanwahyu/palmview/internal/application/analysis"
	"github.com/bryanwahyu/palmview/internal/domain/history"
	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/domain/session"
	"github.com/bryanwahyu/palmview/internal/infra/statestore"
	"github.com/bryanwahyu/palmview/internal/middleware"
)

const payload = `{"propertyId":"P1","dldPermitNumber":"71234","title":"Signature Villa","price":"AED 45,000,000","location":"Frond P, Palm Jumeirah",
"bedrooms":"6","bathrooms":"7","area":"9,000 sq ft","propertyType":"Villa","description":"Beachfront villa.",
"amenities":["Private Pool"],"investmentAnalysis":{"roiEstimate":"5%","marketComparison":"At market","score":72}}`

type stubExtractor struct {
	err error
}

func (s stubExtractor) Analyze(_ context.Context, url string) (property.Details, error) {
	if s.err != nil {
		return property.Details{}, s.err
	}
	return property.Build([]byte(payload), url, nil)
}

type stubHistory struct {
	recs []*history.Record
}

func (h *stubHistory) Save(_ context.Context, r *history.Record) error {
	h.recs = append(h.recs, r)
	return nil
}

func (h *stubHistory) Paginate(_ context.Context, page, size int) ([]*history.Record, error) {
	return h.recs, nil
}

func (h *stubHistory) Count(context.Context) (int64, error) { return int64(len(h.recs)), nil }

func (h *stubHistory) LatestByURL(_ context.Context, url string) (*history.Record, error) {
	for i := len(h.recs) - 1; i >= 0; i-- {
		if h.recs[i].URL == url {
			return h.recs[i], nil
		}
	}
	return nil, nil
}

// gatedExtractor holds every call until gate is closed.
type gatedExtractor struct {
	gate chan struct{}
}

func (g gatedExtractor) Analyze(ctx context.Context, url string) (property.Details, error) {
	<-g.gate
	return stubExtractor{}.Analyze(ctx, url)
}

type fixture struct {
	handler http.Handler
	ctrl    *analysis.Controller
	hist    *stubHistory
	cookie  *http.Cookie
}

func newFixture(t *testing.T, ex property.Extractor, rateLimit int) *fixture {
	t.Helper()
	hist := &stubHistory{}
	ctrl := &analysis.Controller{
		Extractor: ex,
		States:    statestore.NewMemory(time.Hour),
		Clock:     application.FixedClock{T: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)},
		History:   hist,
	}
	h := NewRouter(Options{
		Controller:     ctrl,
		History:        hist,
		AdminKeys:      map[string]string{"ops": "admin-key"},
		CookieTTL:      time.Hour,
		RateLimit:      rateLimit,
		RateWindow:     time.Minute,
		AllowedOrigins: []string{"*"},
	})
	return &fixture{handler: h, ctrl: ctrl, hist: hist}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			f.cookie = c
		}
	}
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) session.ViewState {
	t.Helper()
	var st session.ViewState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rec.Body.String())
	}
	return st
}

func TestPageIssuesSessionCookie(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.cookie == nil || middleware.ValidateSessionID(f.cookie.Value) != nil {
		t.Fatalf("session cookie = %+v", f.cookie)
	}
	if !strings.Contains(rec.Body.String(), "Analyze Property") {
		t.Errorf("page body missing submit button")
	}
}

func TestAPISubmitThenState(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)

	rec := f.do(t, jsonRequest(http.MethodPost, "/api/analyze", `{"url":"  https://example.com/listing-1 "}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); !st.IsLoading || st.Error != nil {
		t.Errorf("submit state = %+v", st)
	}

	f.ctrl.Wait()
	st := decodeState(t, f.do(t, httptest.NewRequest(http.MethodGet, "/api/state", nil)))
	if st.Phase() != session.PhaseSuccess {
		t.Fatalf("phase = %s", st.Phase())
	}
	if len(st.Data.Sources) != 1 || st.Data.Sources[0].Title != "Property Finder" || st.Data.Sources[0].URI != "https://example.com/listing-1" {
		t.Errorf("sources = %+v", st.Data.Sources)
	}
	if st.Data.InvestmentAnalysis.Score != 72 {
		t.Errorf("score = %v", st.Data.InvestmentAnalysis.Score)
	}

	page := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	for _, want := range []string{"Signature Villa", "71234", "Private Pool", ">72<", "Verification Sources"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	reset := decodeState(t, f.do(t, jsonRequest(http.MethodPost, "/api/reset", "")))
	if reset.Phase() != session.PhaseIdle {
		t.Errorf("after reset phase = %s", reset.Phase())
	}
}

func TestAPISubmitBlankIsNoop(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	rec := f.do(t, jsonRequest(http.MethodPost, "/api/analyze", `{"url":"   "}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if st := decodeState(t, rec); st.Phase() != session.PhaseIdle || st.Seq != 0 {
		t.Errorf("state = %+v", st)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	f.do(t, jsonRequest(http.MethodPost, "/api/analyze", `{"url":"https://example.com/listing-1"}`))
	f.ctrl.Wait()

	other := &fixture{handler: f.handler}
	st := decodeState(t, other.do(t, httptest.NewRequest(http.MethodGet, "/api/state", nil)))
	if st.Phase() != session.PhaseIdle {
		t.Errorf("second browser sees phase %s", st.Phase())
	}
}

func TestFormFlowShowsFailure(t *testing.T) {
	f := newFixture(t, stubExtractor{err: errors.New("network unreachable")}, 0)

	form := url.Values{"url": {"https://example.com/listing-1"}}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(t, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	f.ctrl.Wait()
	page := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "Analysis Error") || !strings.Contains(page, "network unreachable") {
		t.Errorf("page does not show the failure")
	}

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/reset", nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("reset status = %d", rec.Code)
	}
	if strings.Contains(f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String(), "Analysis Error") {
		t.Errorf("error still shown after reset")
	}
}

func TestSyncAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"url":"https://example.com/listing-1"}`, wantStatus: http.StatusOK},
		{name: "empty url", body: `{"url":" "}`, wantStatus: http.StatusBadRequest, wantCode: "url_required"},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "invalid_body"},
		{name: "quota", err: property.NewExtractionError(property.KindRateLimited, errors.New("429")), body: `{"url":"https://x"}`, wantStatus: http.StatusTooManyRequests, wantCode: "quota_exceeded"},
		{name: "extraction", err: property.NewExtractionError(property.KindGeneric, errors.New("bad json")), body: `{"url":"https://x"}`, wantStatus: http.StatusBadGateway, wantCode: "extraction_failed"},
		{name: "unexpected", err: errors.New("boom"), body: `{"url":"https://x"}`, wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubExtractor{err: tt.err}, 0)
			rec := f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				var d property.Details
				if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil || d.Title != "Signature Villa" {
					t.Errorf("details = %+v err = %v", d, err)
				}
				return
			}
			var body middleware.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != tt.wantCode {
				t.Errorf("body = %s, want code %q", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestHistoryListingRequiresAdminKey(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/listing-1"}`))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses?page=1&page_size=500", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	rec = f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with key status = %d", rec.Code)
	}
	var body history.PaginatedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.PageSize != 100 || body.Total != 1 || body.TotalPages != 1 || len(body.Data) != 1 || body.Data[0].Status != history.StatusSuccess {
		t.Errorf("listing = %s", rec.Body.String())
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 1)
	first := f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/a"}`))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	second := f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/b"}`))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", second.Code)
	}
	var body middleware.ErrorResponse
	_ = json.Unmarshal(second.Body.Bytes(), &body)
	if body.Error != "rate_limited" {
		t.Errorf("body = %s", second.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		if rec := f.do(t, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
	if f.cookie != nil {
		t.Errorf("health endpoints should not issue a session cookie")
	}
}

func TestHistoryLookupByURL(t *testing.T) {
	f := newFixture(t, stubExtractor{}, 0)
	f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/listing-1"}`))
	f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/listing-2"}`))
	f.do(t, jsonRequest(http.MethodPost, "/v1/analyze", `{"url":"https://example.com/listing-1"}`))

	lookup := func(listing string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/analyses?url="+url.QueryEscape(listing), nil)
		req.Header.Set("Authorization", "Bearer admin-key")
		return f.do(t, req)
	}

	rec := lookup("https://example.com/listing-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got history.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != f.hist.recs[2].ID || got.URL != "https://example.com/listing-1" {
		t.Errorf("lookup returned %s %s, want newest record %s", got.ID, got.URL, f.hist.recs[2].ID)
	}

	rec = lookup("https://example.com/unknown")
	var body middleware.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusNotFound || body.Error != "not_found" {
		t.Errorf("unknown url: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestLoadingPageOffersReset(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, gatedExtractor{gate: gate}, 0)
	defer func() {
		close(gate)
		f.ctrl.Wait()
	}()

	f.do(t, jsonRequest(http.MethodPost, "/api/analyze", `{"url":"https://example.com/listing-1"}`))
	page := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "Analyzing listing") || !strings.Contains(page, `action="/reset"`) {
		t.Errorf("loading page lacks a reset form")
	}

	f.do(t, httptest.NewRequest(http.MethodPost, "/reset", nil))
	st := decodeState(t, f.do(t, httptest.NewRequest(http.MethodGet, "/api/state", nil)))
	if st.Phase() != session.PhaseIdle {
		t.Errorf("after reset phase = %s", st.Phase())
	}
}

func TestCORSCredentials(t *testing.T) {
	tests := []struct {
		name      string
		origins   []string
		wantCreds bool
	}{
		{name: "wildcard", origins: []string{"*"}},
		{name: "empty", origins: nil},
		{name: "explicit", origins: []string{"https://palm.example"}, wantCreds: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := corsOptions(tt.origins).AllowCredentials; got != tt.wantCreds {
				t.Errorf("AllowCredentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}

	h := NewRouter(Options{
		Controller:     &analysis.Controller{Extractor: stubExtractor{}, States: statestore.NewMemory(time.Hour)},
		CookieTTL:      time.Hour,
		AllowedOrigins: []string{"https://palm.example"},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://palm.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://palm.example" || rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("cors headers = %v", rec.Header())
	}
}

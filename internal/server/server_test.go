package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verimedia/verimedia/internal/app"
	"github.com/verimedia/verimedia/internal/explain"
	"github.com/verimedia/verimedia/internal/fusion"
	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/model"
	"github.com/verimedia/verimedia/internal/quota"
	"github.com/verimedia/verimedia/internal/testutil"
)

type serverEnv struct {
	srv   *Server
	ts    *httptest.Server
	blobs *testutil.DummyBlobStore
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	logger := &testutil.DummyLogger{}
	fuser, err := fusion.NewEngine(nil, logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	explainer, err := explain.NewAggregator(logger)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	analyzers := map[model.Modality]interfaces.ModalityAnalyzer{
		model.ModalityVision:   &testutil.DummyAnalyzer{Name: model.ModalityVision, Score: model.Float(0.8)},
		model.ModalityAudio:    &testutil.DummyAnalyzer{Name: model.ModalityAudio, Score: model.Float(0.5)},
		model.ModalityTemporal: &testutil.DummyAnalyzer{Name: model.ModalityTemporal, Score: model.Float(0.5)},
		model.ModalityLipsync:  &testutil.DummyAnalyzer{Name: model.ModalityLipsync, Score: model.Float(0.5)},
	}

	blobs := &testutil.DummyBlobStore{}
	orch, err := app.NewOrchestrator(nil, analyzers, blobs, &testutil.DummyExtractor{}, &testutil.DummyStore{}, fuser, explainer, logger)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ledger, err := quota.NewLedger(quota.Config{Secret: []byte("test-signing-secret")}, logger)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	srv, err := NewServer(Config{}, orch, ledger, nil, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &serverEnv{srv: srv, ts: ts, blobs: blobs}
}

func uploadBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// postAnalyze submits an upload with an optional credit token and returns the
// response plus decoded body.
func (e *serverEnv) postAnalyze(t *testing.T, path, token, filename, contentType string, data []byte) (*http.Response, JobResponse) {
	t.Helper()
	body, formType := uploadBody(t, filename, contentType, data)
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", formType)
	if token != "" {
		req.Header.Set(creditHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var jr JobResponse
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &jr)
	return resp, jr
}

func (e *serverEnv) getMe(t *testing.T, token, bearer string) MeResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/me", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set(creditHeader, token)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /me status = %d", resp.StatusCode)
	}
	var me MeResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decoding /me: %v", err)
	}
	return me
}

// ─── basic surface ─────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, err := http.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestResultsUnknownJob(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, err := http.Get(env.ts.URL + "/results/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// ─── analyze ───────────────────────────────────────────────────────────

func TestAnalyzeSyncFlow(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, jr := env.postAnalyze(t, "/analyze", "", "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if jr.JobID == "" {
		t.Fatal("response has no job id")
	}
	token := resp.Header.Get(creditHeader)
	if token == "" {
		t.Fatal("no replacement credit token in response")
	}
	var cookieSet bool
	for _, c := range resp.Cookies() {
		if c.Name == creditCookie && c.Value == token {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("credit cookie missing or differs from header token")
	}

	// One credit spent from the guest allowance of 5.
	if me := env.getMe(t, token, ""); me.CreditsLeft != quota.DefaultGuestCredits-1 {
		t.Errorf("credits_left = %d, want %d", me.CreditsLeft, quota.DefaultGuestCredits-1)
	}

	res, err := http.Get(env.ts.URL + "/results/" + jr.JobID)
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", res.StatusCode)
	}
	var result model.JobResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.MediaType != model.MediaImage {
		t.Errorf("media_type = %q, want image", result.MediaType)
	}
	if result.Label != model.LabelManipulated {
		t.Errorf("label = %q, want manipulated", result.Label)
	}
}

func TestAnalyzeQuotaExhaustion(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	token := ""
	for i := 0; i < quota.DefaultGuestCredits; i++ {
		resp, _ := env.postAnalyze(t, "/analyze", token, "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, resp.StatusCode)
		}
		token = resp.Header.Get(creditHeader)
		if token == "" {
			t.Fatalf("request %d: no replacement token", i+1)
		}
	}

	resp, _ := env.postAnalyze(t, "/analyze", token, "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("exhausted request: status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get(creditHeader) != "" {
		t.Error("denied request minted a replacement token")
	}
}

func TestAnalyzeTamperedTokenResets(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, _ := env.postAnalyze(t, "/analyze", "totally-not-a-jwt", "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (benign reset)", resp.StatusCode)
	}
	token := resp.Header.Get(creditHeader)
	if me := env.getMe(t, token, ""); me.CreditsLeft != quota.DefaultGuestCredits-1 {
		t.Errorf("credits_left = %d, want fresh allowance minus one", me.CreditsLeft)
	}
}

func TestAnalyzeUnsupportedContentType(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, _ := env.postAnalyze(t, "/analyze", "", "doc.pdf", "application/pdf", []byte("%PDF-1.7"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeMissingFileField(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, err := http.Post(env.ts.URL+"/analyze", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ─── quota surface ─────────────────────────────────────────────────────

func TestMeNeverMutates(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	for i := 0; i < 3; i++ {
		me := env.getMe(t, "", "")
		if me.Authenticated {
			t.Error("tokenless caller reported authenticated")
		}
		if me.CreditsLeft != quota.DefaultGuestCredits {
			t.Errorf("credits_left = %d, want full guest allowance", me.CreditsLeft)
		}
	}
}

func TestMeAuthenticatedClass(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	me := env.getMe(t, "", "some-session-token")
	if !me.Authenticated {
		t.Error("bearer caller not reported authenticated")
	}
	if me.CreditsLeft != quota.DefaultAuthenticatedCredits {
		t.Errorf("credits_left = %d, want %d", me.CreditsLeft, quota.DefaultAuthenticatedCredits)
	}
}

// ─── async jobs ────────────────────────────────────────────────────────

func pollResult(t *testing.T, env *serverEnv, jobID string) *http.Response {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		resp, err := http.Get(env.ts.URL + "/results/" + jobID)
		if err != nil {
			t.Fatalf("GET result: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			return resp
		}
		resp.Body.Close()
		select {
		case <-deadline:
			t.Fatal("result never appeared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAnalyzeAsync(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, jr := env.postAnalyze(t, "/analyze?wait=false", "", "clip.mp4", "video/mp4", []byte("video bytes"))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if jr.JobID == "" {
		t.Fatal("async response has no job id")
	}

	res := pollResult(t, env, jr.JobID)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", res.StatusCode)
	}
	var result model.JobResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.MediaType != model.MediaVideo {
		t.Errorf("media_type = %q, want video", result.MediaType)
	}
}

func TestFailedJobStaysReadable(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	env.blobs.PutErr = fmt.Errorf("bucket unavailable")

	resp, jr := env.postAnalyze(t, "/analyze?wait=false", "", "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	res := pollResult(t, env, jr.JobID)
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("result status = %d, want 500 with stored error", res.StatusCode)
	}
	var stored model.JobResult
	if err := json.NewDecoder(res.Body).Decode(&stored); err != nil {
		t.Fatalf("decoding stored error: %v", err)
	}
	if !stored.Failed() || stored.Error == "" {
		t.Errorf("stored record is not the error variant: %+v", stored)
	}
}

func TestJobWS(t *testing.T) {
	t.Parallel()

	env := newServerEnv(t)
	resp, jr := env.postAnalyze(t, "/analyze?wait=false", "", "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/jobs/" + jr.JobID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// First frame is the job snapshot.
	var snap app.Job
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snap.ID != jr.JobID {
		t.Errorf("snapshot id = %q, want %q", snap.ID, jr.JobID)
	}
}

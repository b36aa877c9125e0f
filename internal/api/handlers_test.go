package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"montaj/internal/arabic"
	"montaj/internal/fonts"
	"montaj/internal/jobs"
	"montaj/internal/media"
	"montaj/internal/models"
	"montaj/internal/pipeline"
	"montaj/internal/render"
	"montaj/internal/uploads"
	"montaj/internal/workspace"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
مرحبا بالعالم

2
00:00:04,000 --> 00:00:06,000
سطر ثان
`

type env struct {
	t   *testing.T
	srv *httptest.Server
	ws  *workspace.Workspace
	man *jobs.Manager
}

// newEnv stands up the full router over real collaborators; media
// probing falls back to extension metadata since the inputs are not
// real media. A nil runner completes every job with a small file.
func newEnv(t *testing.T, cfg RouterConfig, maxUpload int64, runner jobs.Runner) *env {
	t.Helper()

	ws, err := workspace.New(nil, t.TempDir())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	fontReg, err := fonts.NewRegistry(nil, t.TempDir())
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}
	reg := uploads.NewRegistry()
	shaper := arabic.NewShaper(nil, arabic.Options{})
	prober := media.NewProber(nil, "")
	presets := map[string]models.StyleConfig{"default": models.DefaultStyle()}
	renderer := render.NewRenderer(nil, shaper, fontReg)
	pipe := pipeline.New(nil, reg, ws, renderer, prober, nil, presets, 1)

	if runner == nil {
		runner = jobs.RunnerFunc(func(_ context.Context, job models.Job, _ func(string)) (string, error) {
			out := ws.OutputPath(job.ID, ".mp4")
			if err := os.WriteFile(out, []byte("rendered-bytes"), 0o644); err != nil {
				return "", err
			}
			return out, nil
		})
	}
	man := jobs.NewManager(nil, runner, 8)

	h := NewHandler(Deps{
		Uploads:        reg,
		Workspace:      ws,
		Prober:         prober,
		Shaper:         shaper,
		Fonts:          fontReg,
		Jobs:           man,
		Pipeline:       pipe,
		Presets:        presets,
		MaxUploadBytes: maxUpload,
	})

	srv := httptest.NewServer(NewRouter(h, cfg))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go man.Run(ctx)
	t.Cleanup(cancel)

	return &env{t: t, srv: srv, ws: ws, man: man}
}

func (e *env) upload(kind, filename string, content []byte) models.Upload {
	e.t.Helper()
	res := e.postMultipart(kind, filename, content)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(res.Body)
		e.t.Fatalf("upload %s: status %d: %s", filename, res.StatusCode, body)
	}
	var up models.Upload
	if err := json.NewDecoder(res.Body).Decode(&up); err != nil {
		e.t.Fatalf("decode upload: %v", err)
	}
	return up
}

func (e *env) postMultipart(kind, filename string, content []byte) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("kind", kind)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.t.Fatalf("form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	res, err := http.Post(e.srv.URL+"/v1/uploads", mw.FormDataContentType(), &buf)
	if err != nil {
		e.t.Fatalf("post upload: %v", err)
	}
	return res
}

func (e *env) postJSON(path string, body interface{}) *http.Response {
	e.t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		e.t.Fatalf("marshal: %v", err)
	}
	res, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		e.t.Fatalf("post %s: %v", path, err)
	}
	return res
}

func (e *env) get(path string) *http.Response {
	e.t.Helper()
	res, err := http.Get(e.srv.URL + path)
	if err != nil {
		e.t.Fatalf("get %s: %v", path, err)
	}
	return res
}

func decodeError(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload["error"]
}

func TestHealth(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.get("/health")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestIndexServesUI(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.get("/")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(res.Body)
	if !bytes.Contains(body, []byte("مونتاج")) {
		t.Errorf("UI page missing expected content")
	}
}

func TestUploadSubtitleReturnsStats(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)

	up := e.upload("subtitle", "episode.srt", []byte(sampleSRT))
	if up.Kind != models.UploadKindSubtitle {
		t.Errorf("kind = %q", up.Kind)
	}
	if up.Subtitle == nil || up.Subtitle.CueCount != 2 {
		t.Fatalf("subtitle stats = %+v, want 2 cues", up.Subtitle)
	}
	if len(up.Subtitle.Samples) == 0 {
		t.Errorf("expected shaped samples")
	}
	if up.ByteSize == 0 {
		t.Errorf("byte size not recorded")
	}

	res := e.get("/v1/uploads/" + up.ID.String())
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("get upload status = %d", res.StatusCode)
	}
}

func TestUploadRejectsUnknownKind(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.postMultipart("document", "a.pdf", []byte("x"))
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestUploadRejectsUnsupportedSubtitle(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.postMultipart("subtitle", "notes.txt", []byte("not a subtitle"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", res.StatusCode)
	}
	if msg := decodeError(t, res); !strings.Contains(msg, "unsupported") {
		t.Errorf("error = %q", msg)
	}
}

func TestUploadVideoUsesFallbackProbe(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	up := e.upload("video", "clip.mp4", []byte("not-really-video"))
	if up.Media == nil {
		t.Fatalf("media info missing")
	}
	if up.Media.Source == models.ProbeSourceFFprobe {
		t.Errorf("garbage input cannot come from ffprobe")
	}
}

func TestUploadTooLarge(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 1024, nil)
	res := e.postMultipart("video", "big.mp4", bytes.Repeat([]byte("a"), 10*1024))
	defer res.Body.Close()
	if res.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", res.StatusCode)
	}
}

func TestGetUploadNotFound(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.get("/v1/uploads/" + uuid.NewString())
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}

	res2 := e.get("/v1/uploads/not-a-uuid")
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res2.StatusCode)
	}
}

func TestThumbnailRoute(t *testing.T) {
	// The test handler has no compositor, so a valid video upload lands
	// on 501 after the id and kind checks pass.
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	video := e.upload("video", "clip.mp4", []byte("not-really-video"))
	sub := e.upload("subtitle", "episode.srt", []byte(sampleSRT))

	res := e.get("/v1/uploads/" + video.ID.String() + "/thumbnail")
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotImplemented {
		t.Errorf("video thumbnail status = %d, want 501", res.StatusCode)
	}

	res2 := e.get("/v1/uploads/" + sub.ID.String() + "/thumbnail")
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("subtitle thumbnail status = %d, want 422", res2.StatusCode)
	}

	res3 := e.get("/v1/uploads/" + uuid.NewString() + "/thumbnail")
	defer res3.Body.Close()
	if res3.StatusCode != http.StatusNotFound {
		t.Errorf("unknown thumbnail status = %d, want 404", res3.StatusCode)
	}
}

func TestRenderLifecycle(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	video := e.upload("video", "clip.mp4", []byte("not-really-video"))
	sub := e.upload("subtitle", "episode.srt", []byte(sampleSRT))

	res := e.postJSON("/v1/renders", models.RenderRequest{
		VideoID:    video.ID,
		SubtitleID: sub.ID,
		Quality:    models.QualityFast,
		OutputName: "final.mp4",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create render status = %d: %s", res.StatusCode, decodeError(t, res))
	}
	var created models.CreateRenderResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	res.Body.Close()
	if created.Status != models.JobStatusQueued {
		t.Errorf("status = %q, want queued", created.Status)
	}

	var job models.Job
	deadline := time.Now().Add(5 * time.Second)
	for {
		jres := e.get("/v1/renders/" + created.JobID.String())
		if jres.StatusCode != http.StatusOK {
			t.Fatalf("get render status = %d", jres.StatusCode)
		}
		if err := json.NewDecoder(jres.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		jres.Body.Close()
		if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("job failed: %v", job.Error)
	}

	lres := e.get("/v1/renders")
	var list models.ListJobsResponse
	if err := json.NewDecoder(lres.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	lres.Body.Close()
	if list.Total != 1 || len(list.Jobs) != 1 {
		t.Errorf("list total = %d jobs = %d, want 1/1", list.Total, len(list.Jobs))
	}

	dres := e.get("/v1/renders/" + created.JobID.String() + "/download")
	defer dres.Body.Close()
	if dres.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dres.StatusCode)
	}
	if cd := dres.Header.Get("Content-Disposition"); !strings.Contains(cd, "final.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body, _ := io.ReadAll(dres.Body)
	if string(body) != "rendered-bytes" {
		t.Errorf("downloaded %q", body)
	}
}

func TestCreateRenderValidation(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	video := e.upload("video", "clip.mp4", []byte("not-really-video"))
	sub := e.upload("subtitle", "episode.srt", []byte(sampleSRT))

	cases := []struct {
		name   string
		req    models.RenderRequest
		status int
	}{
		{"missing video", models.RenderRequest{SubtitleID: sub.ID}, http.StatusBadRequest},
		{"unknown quality", models.RenderRequest{VideoID: video.ID, SubtitleID: sub.ID, Quality: "ultra"}, http.StatusBadRequest},
		{"odd height", models.RenderRequest{VideoID: video.ID, SubtitleID: sub.ID, TargetHeight: 721}, http.StatusBadRequest},
		{"unknown upload", models.RenderRequest{VideoID: uuid.New(), SubtitleID: sub.ID}, http.StatusUnprocessableEntity},
		{"swapped kinds", models.RenderRequest{VideoID: sub.ID, SubtitleID: video.ID}, http.StatusUnprocessableEntity},
		{"unknown preset", models.RenderRequest{VideoID: video.ID, SubtitleID: sub.ID, Preset: "cinematic"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		res := e.postJSON("/v1/renders", tc.req)
		if res.StatusCode != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.name, res.StatusCode, tc.status)
		}
		res.Body.Close()
	}

	size := 200
	res := e.postJSON("/v1/renders", models.RenderRequest{
		VideoID: video.ID, SubtitleID: sub.ID,
		Style: &models.StyleOverrides{FontSize: &size},
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid style: status = %d, want 422", res.StatusCode)
	}
	res.Body.Close()
}

func TestDownloadNotReady(t *testing.T) {
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	runner := jobs.RunnerFunc(func(ctx context.Context, _ models.Job, _ func(string)) (string, error) {
		select {
		case <-blocked:
		case <-ctx.Done():
		}
		return "", ctx.Err()
	})
	e := newEnv(t, RouterConfig{}, 8<<20, runner)
	video := e.upload("video", "clip.mp4", []byte("not-really-video"))
	sub := e.upload("subtitle", "episode.srt", []byte(sampleSRT))

	res := e.postJSON("/v1/renders", models.RenderRequest{VideoID: video.ID, SubtitleID: sub.ID})
	var created models.CreateRenderResponse
	json.NewDecoder(res.Body).Decode(&created)
	res.Body.Close()

	dres := e.get("/v1/renders/" + created.JobID.String() + "/download")
	defer dres.Body.Close()
	if dres.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 while not ready", dres.StatusCode)
	}
}

func TestFetchNotConfigured(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)
	res := e.postJSON("/v1/fetch", models.FetchRequest{URL: "https://example.com/v"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", res.StatusCode)
	}
}

func TestListPresetsAndFonts(t *testing.T) {
	e := newEnv(t, RouterConfig{}, 8<<20, nil)

	pres := e.get("/v1/presets")
	var presets map[string]models.StyleConfig
	if err := json.NewDecoder(pres.Body).Decode(&presets); err != nil {
		t.Fatalf("decode presets: %v", err)
	}
	pres.Body.Close()
	if _, ok := presets["default"]; !ok {
		t.Errorf("default preset missing")
	}

	fres := e.get("/v1/fonts")
	var fontList []models.FontInfo
	if err := json.NewDecoder(fres.Body).Decode(&fontList); err != nil {
		t.Fatalf("decode fonts: %v", err)
	}
	fres.Body.Close()
	if len(fontList) == 0 {
		t.Errorf("font list empty; the fallback family should always be present")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	e := newEnv(t, RouterConfig{APIKey: "sesame"}, 8<<20, nil)

	res := e.get("/health")
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("health should stay public, got %d", res.StatusCode)
	}

	res = e.get("/v1/renders")
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/v1/renders", nil)
	req.Header.Set("X-API-Key", "wrong")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", res.StatusCode)
	}

	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("X-API-Key", "sesame") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer sesame") },
	} {
		req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/v1/renders", nil)
		set(req)
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Errorf("valid key: status = %d, want 200", res.StatusCode)
		}
	}
}

func TestRenderQueueFull(t *testing.T) {
	runner := jobs.RunnerFunc(func(ctx context.Context, _ models.Job, _ func(string)) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e := newEnv(t, RouterConfig{}, 8<<20, runner)
	video := e.upload("video", "clip.mp4", []byte("not-really-video"))
	sub := e.upload("subtitle", "episode.srt", []byte(sampleSRT))

	req := models.RenderRequest{VideoID: video.ID, SubtitleID: sub.ID}
	var saw503 bool
	// Buffer is 8 and one job may be in flight; a few extra requests
	// must hit the backpressure error.
	for i := 0; i < 12; i++ {
		res := e.postJSON("/v1/renders", req)
		if res.StatusCode == http.StatusServiceUnavailable {
			saw503 = true
		} else if res.StatusCode != http.StatusCreated {
			t.Fatalf("request %d: status %d: %s", i, res.StatusCode, decodeError(t, res))
		}
		res.Body.Close()
	}
	if !saw503 {
		t.Errorf("expected at least one 503 once the queue filled")
	}
}

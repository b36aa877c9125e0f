package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"montaj/internal/arabic"
	"montaj/internal/fonts"
	"montaj/internal/jobs"
	"montaj/internal/media"
	"montaj/internal/models"
	"montaj/internal/pipeline"
	"montaj/internal/subtitle"
	"montaj/internal/uploads"
	"montaj/internal/workspace"
)

// maxSampleCues bounds the shaped previews returned for a subtitle upload.
const maxSampleCues = 3

// maxStatsWarnings bounds the parser warnings echoed back to the client.
const maxStatsWarnings = 10

type Handler struct {
	log     *zap.Logger
	uploads *uploads.Registry
	ws      *workspace.Workspace
	prober  *media.Prober
	fetcher *media.Fetcher
	comp    *media.Compositor
	shaper  *arabic.Shaper
	fonts   *fonts.Registry
	jobs    *jobs.Manager
	pipe    *pipeline.Pipeline
	presets map[string]models.StyleConfig

	maxUploadBytes int64
}

// Deps carries the collaborators the handler needs. All fields are
// required except Fetcher, which disables POST /v1/fetch when nil, and
// Compositor, which disables upload thumbnails when nil.
type Deps struct {
	Log            *zap.Logger
	Uploads        *uploads.Registry
	Workspace      *workspace.Workspace
	Prober         *media.Prober
	Fetcher        *media.Fetcher
	Compositor     *media.Compositor
	Shaper         *arabic.Shaper
	Fonts          *fonts.Registry
	Jobs           *jobs.Manager
	Pipeline       *pipeline.Pipeline
	Presets        map[string]models.StyleConfig
	MaxUploadBytes int64
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{
		log:            d.Log.Named("api"),
		uploads:        d.Uploads,
		ws:             d.Workspace,
		prober:         d.Prober,
		fetcher:        d.Fetcher,
		comp:           d.Compositor,
		shaper:         d.Shaper,
		fonts:          d.Fonts,
		jobs:           d.Jobs,
		pipe:           d.Pipeline,
		presets:        d.Presets,
		maxUploadBytes: d.MaxUploadBytes,
	}
}

// CreateUpload handles POST /v1/uploads
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds the %d MB limit", tooLarge.Limit>>20))
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	kind := models.UploadKind(r.FormValue("kind"))
	switch kind {
	case models.UploadKindVideo, models.UploadKindAudio, models.UploadKindSubtitle:
	default:
		respondError(w, http.StatusBadRequest, "kind must be video, audio or subtitle")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	id := uuid.New()
	path, size, err := h.ws.SaveUpload(id, header.Filename, file)
	if err != nil {
		h.log.Error("save upload", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	upload := models.Upload{
		ID:        id,
		Kind:      kind,
		Filename:  header.Filename,
		Path:      path,
		ByteSize:  size,
		CreatedAt: time.Now().UTC(),
	}

	if kind == models.UploadKindSubtitle {
		stats, err := h.subtitleStats(path)
		if err != nil {
			os.Remove(path)
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		upload.Subtitle = stats
	} else {
		info := h.prober.Probe(r.Context(), path)
		upload.Media = &info
		// The fallback prober cannot see streams, so only reject on
		// real probe results.
		if info.Source != models.ProbeSourceFallback {
			if kind == models.UploadKindVideo && !info.HasVideo {
				os.Remove(path)
				respondError(w, http.StatusUnprocessableEntity, "The file has no video stream")
				return
			}
			if kind == models.UploadKindAudio && !info.HasAudio {
				os.Remove(path)
				respondError(w, http.StatusUnprocessableEntity, "The file has no audio stream")
				return
			}
		}
	}

	h.uploads.Add(upload)
	h.log.Info("upload stored",
		zap.String("upload_id", id.String()),
		zap.String("kind", string(kind)),
		zap.Int64("bytes", size))
	respondJSON(w, http.StatusCreated, upload)
}

// GetUpload handles GET /v1/uploads/{id}
func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid upload ID")
		return
	}
	upload, ok := h.uploads.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Upload not found")
		return
	}
	respondJSON(w, http.StatusOK, upload)
}

// GetThumbnail handles GET /v1/uploads/{id}/thumbnail. The frame is
// extracted once and cached in the workspace.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid upload ID")
		return
	}
	upload, ok := h.uploads.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Upload not found")
		return
	}
	if upload.Kind != models.UploadKindVideo {
		respondError(w, http.StatusUnprocessableEntity, "Thumbnails are only available for video uploads")
		return
	}
	if h.comp == nil {
		respondError(w, http.StatusNotImplemented, "Thumbnail extraction is not configured")
		return
	}

	path := h.ws.ThumbnailPath(id)
	if _, err := os.Stat(path); err != nil {
		// Grab a frame a little way in so we skip leaders and fades.
		at := 1.0
		if upload.Media != nil && upload.Media.Duration > 10 {
			at = upload.Media.Duration * 0.1
		}
		if err := h.comp.ExtractFrame(r.Context(), upload.Path, at, path); err != nil {
			h.log.Error("extract thumbnail", zap.String("upload_id", id.String()), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to extract thumbnail")
			return
		}
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}

// CreateRender handles POST /v1/renders
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check the referenced uploads and the style now so the caller
	// hears about mistakes before the job queues.
	if _, err := h.uploads.Resolve(req.VideoID, models.UploadKindVideo); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, err := h.uploads.Resolve(req.SubtitleID, models.UploadKindSubtitle); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.AudioID != nil {
		if _, err := h.uploads.Resolve(*req.AudioID, models.UploadKindAudio); err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	if _, err := h.pipe.ResolveStyle(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	job, err := h.jobs.Enqueue(req)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, models.CreateRenderResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ListRenders handles GET /v1/renders
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) {
	list := h.jobs.List()
	respondJSON(w, http.StatusOK, models.ListJobsResponse{Jobs: list, Total: len(list)})
}

// GetRender handles GET /v1/renders/{id}
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Render not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// DownloadRender handles GET /v1/renders/{id}/download
func (h *Handler) DownloadRender(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Render not found")
		return
	}
	if job.Status != models.JobStatusCompleted {
		respondError(w, http.StatusNotFound, "Render not ready")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		respondError(w, http.StatusNotFound, "Output file no longer exists")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.OutputName))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, job.OutputPath)
}

// CreateFetch handles POST /v1/fetch
func (h *Handler) CreateFetch(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		respondError(w, http.StatusNotImplemented, "URL fetch is not configured")
		return
	}

	var req models.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	dir, err := h.ws.TempDir("fetch_")
	if err != nil {
		h.log.Error("fetch temp dir", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to prepare fetch")
		return
	}
	defer os.RemoveAll(dir)

	res, err := h.fetcher.Fetch(r.Context(), req.URL, dir, req.Quality, req.SubtitleLang)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("Fetch failed: %v", err))
		return
	}

	videoID := uuid.New()
	path, err := h.ws.AdoptFile(videoID, res.VideoPath)
	if err != nil {
		h.log.Error("adopt fetched video", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store fetched video")
		return
	}
	info := h.prober.Probe(r.Context(), path)
	video := models.Upload{
		ID:        videoID,
		Kind:      models.UploadKindVideo,
		Filename:  filepath.Base(res.VideoPath),
		Path:      path,
		ByteSize:  info.ByteSize,
		Media:     &info,
		CreatedAt: time.Now().UTC(),
	}
	h.uploads.Add(video)
	resp := models.FetchResponse{Video: video}

	if res.SubtitlePath != "" {
		if sub := h.adoptSubtitle(res.SubtitlePath); sub != nil {
			h.uploads.Add(*sub)
			resp.Subtitle = sub
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// adoptSubtitle moves a fetched subtitle into the workspace and parses
// it. A bad subtitle is dropped with a warning, never a fetch failure.
func (h *Handler) adoptSubtitle(src string) *models.Upload {
	id := uuid.New()
	path, err := h.ws.AdoptFile(id, src)
	if err != nil {
		h.log.Warn("adopt fetched subtitle", zap.Error(err))
		return nil
	}
	stats, err := h.subtitleStats(path)
	if err != nil {
		h.log.Warn("fetched subtitle unusable", zap.Error(err))
		os.Remove(path)
		return nil
	}
	return &models.Upload{
		ID:        id,
		Kind:      models.UploadKindSubtitle,
		Filename:  filepath.Base(src),
		Path:      path,
		ByteSize:  fileSize(path),
		Subtitle:  stats,
		CreatedAt: time.Now().UTC(),
	}
}

// ListPresets handles GET /v1/presets
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.presets)
}

// ListFonts handles GET /v1/fonts
func (h *Handler) ListFonts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.fonts.List())
}

func (h *Handler) subtitleStats(path string) (*models.SubtitleStats, error) {
	doc, err := subtitle.Open(path)
	if err != nil {
		return nil, err
	}
	if len(doc.Cues) == 0 {
		return nil, errors.New("subtitle file contains no usable cues")
	}

	stats := &models.SubtitleStats{Format: doc.Format, CueCount: len(doc.Cues)}
	if len(doc.Warnings) > maxStatsWarnings {
		stats.Warnings = append(doc.Warnings[:maxStatsWarnings:maxStatsWarnings],
			fmt.Sprintf("and %d more", len(doc.Warnings)-maxStatsWarnings))
	} else {
		stats.Warnings = doc.Warnings
	}
	for _, cue := range doc.Cues {
		if len(stats.Samples) == maxSampleCues {
			break
		}
		text := arabic.Clean(strings.ReplaceAll(cue.Text, "\n", " "))
		if text == "" {
			continue
		}
		stats.Samples = append(stats.Samples, h.shaper.Shape(text).Display)
	}
	return stats, nil
}

func fileSize(path string) int64 {
	if fi, err := os.Stat(path); err == nil {
		return fi.Size()
	}
	return 0
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

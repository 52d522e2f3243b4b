package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"photoTagger/internal/batch"
	"photoTagger/internal/progress"
)

const version = "0.1.0"

// multipartMemory is how much of a submission is buffered in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResp struct {
	Ok        bool      `json:"ok"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type processResp struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	BatchID        string         `json:"batch_id"`
	ProcessedCount int            `json:"processed_count"`
	OutputFormat   string         `json:"output_format"`
	DownloadURL    string         `json:"download_url"`
	ProcessedFiles []batch.Output `json:"processed_files"`
	Errors         []string       `json:"errors"`
}

type progressResp struct {
	Progress int `json:"progress"`
}

type statusResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type server struct {
	orch      *batch.Orchestrator
	ws        *batch.Workspace
	progress  progress.Store
	log       logrus.FieldLogger
	maxUpload int64
}

// routes builds the API router wrapped in CORS, panic recovery and access
// logging.
func (s *server) routes(accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", handleHealth).Methods(http.MethodGet)

	g := r.PathPrefix("/api/geotagging").Subrouter()
	g.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	g.HandleFunc("/progress/{batch_id}", withBatchID(s.handleProgress)).Methods(http.MethodGet)
	g.HandleFunc("/download/{batch_id}/zip", withBatchID(s.handleDownloadZip)).Methods(http.MethodGet)
	g.HandleFunc("/download/{batch_id}/single", withBatchID(s.handleDownloadSingle)).Methods(http.MethodGet)
	g.HandleFunc("/cleanup/{batch_id}", withBatchID(s.handleCleanup)).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.log),
		handlers.PrintRecoveryStack(true),
	)
	return handlers.CombinedLoggingHandler(accessLog, recovery(cors(r)))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Ok: true, Version: version, Timestamp: time.Now()})
}

// withBatchID rejects requests whose {batch_id} is not a batch identifier
// before it can be joined into a filesystem path.
func withBatchID(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.ToLower(mux.Vars(r)["batch_id"])
		if !batch.ValidID(id) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid batch id"})
			return
		}
		next(w, r, id)
	}
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: "Upload too large", Details: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid upload", Details: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()
	form := r.MultipartForm

	files := form.File["files[]"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "No files provided", Details: "The request did not contain any files"})
		return
	}
	if files[0].Filename == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "No files selected", Details: "The file list is empty or the first file has no filename"})
		return
	}

	uploads := make([]batch.Upload, len(files))
	coords := form.Value["coordinates[]"]
	for i, fh := range files {
		uploads[i] = batch.Upload{Filename: fh.Filename, Open: openPart(fh)}
		if i < len(coords) {
			p, err := batch.ParseCoordinates(coords[i])
			if err != nil {
				s.log.WithField("file", fh.Filename).WithError(err).Warn("ignoring per-item coordinates")
			}
			uploads[i].Coordinates = p
		}
	}
	uploads, err := batch.Pair(uploads, form.Value["file_paths[]"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Mismatch between number of files and paths", Details: err.Error()})
		return
	}

	fields := map[string]any{}
	if raw := r.FormValue("exif_data"); strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid EXIF data format", Details: err.Error()})
			return
		}
	}

	req := batch.Request{
		BatchID:      r.FormValue("batch_id"),
		Uploads:      uploads,
		Form:         fields,
		OutputFormat: r.FormValue("output_format"),
	}
	if raw := strings.TrimSpace(r.FormValue("all_metadata")); raw != "" {
		req.Comprehensive = json.RawMessage(raw)
	}

	m, err := s.orch.Process(r.Context(), req)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, processResp{
		Status:         "success",
		Message:        "Successfully processed " + strconv.Itoa(len(m.Outputs)) + " images",
		BatchID:        m.BatchID,
		ProcessedCount: len(m.Outputs),
		OutputFormat:   m.OutputFormat,
		DownloadURL:    m.DownloadURL,
		ProcessedFiles: m.Outputs,
		Errors:         m.Errors,
	})
}

func (s *server) writeProcessError(w http.ResponseWriter, err error) {
	var failure *batch.Failure
	switch {
	case errors.Is(err, batch.ErrNoFiles):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "No files provided", Details: err.Error()})
	case errors.Is(err, batch.ErrInvalidBatchID), errors.Is(err, batch.ErrBatchExists):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid batch id", Details: err.Error()})
	case errors.Is(err, batch.ErrNoValidFiles):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "No valid image files provided", Details: details(err)})
	case errors.Is(err, batch.ErrNothingProcessed):
		writeJSON(w, http.StatusInternalServerError, apiError{
			Error:   "Failed to process any files",
			Details: "No files were successfully geotagged or converted. Errors:\n" + details(err),
		})
	case errors.Is(err, batch.ErrArchive):
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Failed to create zip file", Details: details(err)})
	case errors.As(err, &failure):
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Batch failed", Details: failure.Details()})
	default:
		s.log.WithError(err).Error("unexpected error processing batch")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "An unexpected error occurred", Details: err.Error()})
	}
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.progress.Get(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, progressResp{Progress: p})
}

func (s *server) handleDownloadZip(w http.ResponseWriter, r *http.Request, id string) {
	path, err := s.ws.EnsureArchive(id)
	if errors.Is(err, batch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "Zip file not found"})
		return
	}
	if err != nil {
		s.log.WithField("batch_id", id).WithError(err).Error("failed to build archive")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Failed to create zip file", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+batch.ArchiveName+`"`)
	http.ServeFile(w, r, path)
}

func (s *server) handleDownloadSingle(w http.ResponseWriter, r *http.Request, id string) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Filename not provided"})
		return
	}
	path, err := s.ws.FindOutput(id, filename)
	if errors.Is(err, batch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "File " + filename + " not found in batch " + id})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".tif", ".tiff":
		w.Header().Set("Content-Type", "image/tiff")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request, id string) {
	if err := batch.Cleanup(s.ws, s.progress, id); err != nil {
		s.log.WithField("batch_id", id).WithError(err).Error("cleanup failed")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Cleanup failed", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResp{Status: "success", Message: "Batch cleaned up"})
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

// details extracts per-item diagnostics from a batch failure.
func details(err error) string {
	var failure *batch.Failure
	if errors.As(err, &failure) {
		return failure.Details()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

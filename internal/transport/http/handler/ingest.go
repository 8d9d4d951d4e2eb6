package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-knowledge/internal/app"
	"gopherai-knowledge/internal/media"
	"gopherai-knowledge/internal/repository"
	"gopherai-knowledge/internal/transport/http/middleware"
	"gopherai-knowledge/internal/transport/http/response"
	"gopherai-knowledge/internal/vectorstore"
)

type IngestHandler struct {
	ingestService *app.IngestService
	recordRepo    *repository.IngestRecordRepository
}

func NewIngestHandler(ingestService *app.IngestService, recordRepo *repository.IngestRecordRepository) *IngestHandler {
	return &IngestHandler{ingestService: ingestService, recordRepo: recordRepo}
}

// UploadResponse aggregates per-file results plus overall chunk counts.
type UploadResponse struct {
	Results          []app.FileResult `json:"results"`
	TotalChunks      int              `json:"total_chunks"`
	SuccessfulChunks int              `json:"successful_chunks"`
}

// Upload accepts one or more multipart "files", validates each against the
// mime allow-list and size ceilings before reading further, and runs the
// ingestion pipeline. Validation and extraction failures are reported per
// file; only an unprovisionable index fails the whole request.
func (h *IngestHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files in upload (form field 'files')")
		return
	}

	var files []media.File
	var rejected []app.FileResult
	for _, header := range fileHeaders {
		mimeType := header.Header.Get("Content-Type")

		// Size and type are checked before the file is even read.
		if err := media.Validate(header.Filename, mimeType, header.Size); err != nil {
			if len(fileHeaders) == 1 {
				response.Error(c, http.StatusBadRequest, validationCode(err), err.Error())
				return
			}
			rejected = append(rejected, app.FileResult{FileName: header.Filename, Error: err.Error()})
			continue
		}

		f, err := header.Open()
		if err != nil {
			rejected = append(rejected, app.FileResult{FileName: header.Filename, Error: "failed to open uploaded file"})
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			rejected = append(rejected, app.FileResult{FileName: header.Filename, Error: "failed to read uploaded file"})
			continue
		}

		files = append(files, media.File{
			Name:     header.Filename,
			MimeType: mimeType,
			Data:     data,
		})
	}

	var results []app.FileResult
	if len(files) > 0 {
		requestID := middleware.GetRequestID(c)
		results, err = h.ingestService.Ingest(c.Request.Context(), requestID, files)
		if err != nil {
			if errors.Is(err, vectorstore.ErrProvisioningTimeout) {
				response.Error(c, http.StatusServiceUnavailable, response.CodeIndexNotReady, "vector index is not ready, try again later")
				return
			}
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
			return
		}
	}
	results = append(results, rejected...)

	resp := UploadResponse{Results: results}
	for _, r := range results {
		resp.TotalChunks += r.TotalChunks
		resp.SuccessfulChunks += r.SuccessfulChunks
	}
	response.OK(c, resp)
}

// validationCode maps an upload rejection to its envelope code.
func validationCode(err error) int {
	var validationErr *media.ValidationError
	if errors.As(err, &validationErr) {
		if validationErr.Oversize {
			return response.CodeTooLarge
		}
		return response.CodeUnsupported
	}
	return response.CodeBadRequest
}

// Records returns recent ingestion audit records.
func (h *IngestHandler) Records(c *gin.Context) {
	records, err := h.recordRepo.ListRecent(50)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list ingest records failed")
		return
	}
	response.OK(c, records)
}

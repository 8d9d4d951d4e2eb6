package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-knowledge/internal/app"
	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/media"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/transport/http/response"
	"gopherai-knowledge/internal/vectorstore/memory"
)

type constantProvider struct{}

func (constantProvider) Embed(context.Context, string, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newUploadRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	normalizer := media.NewNormalizer(media.NewDocumentExtractor(), nil, nil, nil, logger.NewNop())
	orch := embedder.NewOrchestrator(constantProvider{}, embedder.Config{
		Model:      "test-embed",
		Dimension:  2,
		RatePerSec: 1000,
		Burst:      10,
	}, logger.NewNop())
	svc := app.NewIngestService(
		normalizer,
		chunker.NewSplitter(1000, 150, 200),
		orch,
		memory.NewStore(),
		"kb",
		nil,
		logger.NewNop(),
	)

	h := NewIngestHandler(svc, nil)
	router := gin.New()
	router.POST("/api/v1/ingest/upload", h.Upload)
	return router
}

func multipartBody(t *testing.T, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", file[0])
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadIngestsTextFile(t *testing.T) {
	router := newUploadRouter(t)
	body, contentType := multipartBody(t, map[string][2]string{
		"notes.txt": {"text/plain", "the refund policy allows returns within 14 days"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Code int            `json:"code"`
		Data UploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, response.CodeOK, envelope.Code)
	assert.Equal(t, 1, envelope.Data.TotalChunks)
	assert.Equal(t, 1, envelope.Data.SuccessfulChunks)
	require.Len(t, envelope.Data.Results, 1)
	assert.Equal(t, "notes.txt", envelope.Data.Results[0].FileName)
	assert.Equal(t, "document", envelope.Data.Results[0].Category)
}

func TestUploadRejectsMissingFiles(t *testing.T) {
	router := newUploadRouter(t)
	body, contentType := multipartBody(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsUnsupportedSingleFile(t *testing.T) {
	router := newUploadRouter(t)
	body, contentType := multipartBody(t, map[string][2]string{
		"payload.exe": {"application/x-msdownload", "MZ"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, response.CodeUnsupported, envelope.Code)
	assert.Contains(t, envelope.Message, "unsupported file type")
}

func TestUploadRejectsOversizeSingleFile(t *testing.T) {
	router := newUploadRouter(t)
	body, contentType := multipartBody(t, map[string][2]string{
		"big.txt": {"text/plain", strings.Repeat("a", media.MaxDocumentBytes+1)},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, response.CodeTooLarge, envelope.Code)
	assert.Contains(t, envelope.Message, "10MB")
}

func TestUploadMixedBatchIsolatesRejection(t *testing.T) {
	router := newUploadRouter(t)
	body, contentType := multipartBody(t, map[string][2]string{
		"good.txt":    {"text/plain", "valid content"},
		"payload.exe": {"application/x-msdownload", "MZ"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data UploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Results, 2)

	byName := make(map[string]app.FileResult)
	for _, r := range envelope.Data.Results {
		byName[r.FileName] = r
	}
	assert.Equal(t, 1, byName["good.txt"].SuccessfulChunks)
	assert.True(t, strings.Contains(byName["payload.exe"].Error, "unsupported file type"))
	assert.Zero(t, byName["payload.exe"].TotalChunks)
}

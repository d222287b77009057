package document

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, filename, brandID, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if brandID != "" {
		require.NoError(t, w.WriteField("brand_id", brandID))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		ingestor := new(MockIngestor)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		ingestor.On("Ingest", mock.Anything, mock.Anything).Return(3, nil)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, StatusCompleted, "", 3).Return(nil)

		handler := NewHandler(NewService(repo, ingestor, nil))

		body, contentType := multipartUpload(t, "voice.md", "acme", "brand voice guidance")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Data Document `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusCompleted, resp.Data.Status)
		assert.Equal(t, "voice.md", resp.Data.Filename)
		assert.Equal(t, 3, resp.Data.ChunkCount)
	})

	t.Run("Unsupported File Type", func(t *testing.T) {
		handler := NewHandler(NewService(new(MockRepository), new(MockIngestor), nil))

		body, contentType := multipartUpload(t, "deck.pptx", "", "binaryish")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Unsupported file type")
	})

	t.Run("Missing File Part", func(t *testing.T) {
		handler := NewHandler(NewService(new(MockRepository), new(MockIngestor), nil))

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("brand_id", "acme"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Invalid UTF8", func(t *testing.T) {
		handler := NewHandler(NewService(new(MockRepository), new(MockIngestor), nil))

		body, contentType := multipartUpload(t, "notes.txt", "", string([]byte{0xff, 0xfe, 0xfd}))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "UTF-8")
	})

	t.Run("Failed Ingestion Still Returns Record", func(t *testing.T) {
		repo := new(MockRepository)
		ingestor := new(MockIngestor)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		ingestor.On("Ingest", mock.Anything, mock.Anything).Return(0, assert.AnError)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, StatusFailed, mock.Anything, 0).Return(nil)

		handler := NewHandler(NewService(repo, ingestor, nil))

		body, contentType := multipartUpload(t, "a.txt", "", "text")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Upload(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Data Document `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusFailed, resp.Data.Status)
		assert.NotEmpty(t, resp.Data.Error)
	})
}

func TestHandler_List(t *testing.T) {
	t.Run("Empty List Returns Array", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", mock.Anything, "").Return([]Document(nil), nil)

		handler := NewHandler(NewService(repo, new(MockIngestor), nil))

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, rec.Body.String())
	})

	t.Run("Scoped By Brand", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", mock.Anything, "acme").Return([]Document{{ID: "doc-1", BrandID: "acme", Filename: "a.txt"}}, nil)

		handler := NewHandler(NewService(repo, new(MockIngestor), nil))

		req := httptest.NewRequest(http.MethodGet, "/documents?brand_id=acme", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":1`)
	})
}

func TestHandler_Get(t *testing.T) {
	t.Run("Not Found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", mock.Anything, "missing").Return(nil, ErrNotFound)

		handler := NewHandler(NewService(repo, new(MockIngestor), nil))

		req := httptest.NewRequest(http.MethodGet, "/documents/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}

func TestHandler_Delete(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		ingestor := new(MockIngestor)
		repo.On("Get", mock.Anything, "doc-1").Return(&Document{ID: "doc-1"}, nil)
		ingestor.On("Remove", mock.Anything, "doc-1").Return(nil)
		repo.On("Delete", mock.Anything, "doc-1").Return(nil)

		handler := NewHandler(NewService(repo, ingestor, nil))

		req := httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Not Found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", mock.Anything, "missing").Return(nil, ErrNotFound)

		handler := NewHandler(NewService(repo, new(MockIngestor), nil))

		req := httptest.NewRequest(http.MethodDelete, "/documents/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

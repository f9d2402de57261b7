package viewer

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/require"
)

// uploadMux fakes the files upload endpoint and the note creation used to
// attach the result to a contact.
func uploadMux(t *testing.T, noteStatus int, notes *atomic.Int64) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("folderPath") != "/viewer-uploads" {
			http.Error(w, "wrong folder", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"2002","name":"annotated","extension":"pdf","size":18,"url":"https://cdn.example.com/2002.pdf"}`))
	})
	mux.HandleFunc("/crm/v3/objects/notes", func(w http.ResponseWriter, r *http.Request) {
		notes.Add(1)
		if noteStatus != http.StatusCreated {
			http.Error(w, "note failed", noteStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"9003"}`))
	})
	return mux
}

func multipartBody(t *testing.T, fields map[string]string) (io.Reader, string) {
	t.Helper()
	require := require.New(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "annotated.pdf")
	require.NoError(err)
	_, err = part.Write([]byte("%PDF-1.7 annotated"))
	require.NoError(err)
	for k, v := range fields {
		require.NoError(mw.WriteField(k, v))
	}
	require.NoError(mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadStoresFile(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520030, uploadMux(t, http.StatusCreated, &notes))
	router := newTestRouter(env)

	token := env.Tokens.Mint(520030, "1001", "contract.pdf")
	body, contentType := multipartBody(t, nil)

	r := httptest.NewRequest("POST", "/files/upload?token="+token, body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(http.StatusCreated, w.Code)

	var resp struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Attached bool   `json:"attached"`
	}
	require.NoError(json.UnmarshalFull(w.Body, &resp))
	require.Equal("2002", resp.ID)
	require.Equal("annotated.pdf", resp.Name)
	require.False(resp.Attached)
	require.Zero(notes.Load())

	// the token stays live after a save; the viewer may save again
	_, err := env.Tokens.ValidateAny(token)
	require.NoError(err)
}

func TestUploadAcceptsAnyLiveToken(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520031, uploadMux(t, http.StatusCreated, &notes))
	router := newTestRouter(env)

	// The token is bound to file 1001, but a save may create a brand-new
	// file, so the upload path only requires that the token is live.
	token := env.Tokens.Mint(520031, "1001", "contract.pdf")
	body, contentType := multipartBody(t, nil)

	r := httptest.NewRequest("POST", "/files/upload?token="+token, body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(http.StatusCreated, w.Code)
}

func TestUploadAttachesToContact(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520032, uploadMux(t, http.StatusCreated, &notes))
	router := newTestRouter(env)

	token := env.Tokens.Mint(520032, "1001", "contract.pdf")
	body, contentType := multipartBody(t, map[string]string{"contactId": "301"})

	r := httptest.NewRequest("POST", "/files/upload?token="+token, body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(http.StatusCreated, w.Code)

	var resp struct {
		Attached bool `json:"attached"`
	}
	require.NoError(json.UnmarshalFull(w.Body, &resp))
	require.True(resp.Attached)
	require.EqualValues(1, notes.Load())
}

func TestUploadSucceedsWhenAttachFails(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520033, uploadMux(t, http.StatusInternalServerError, &notes))
	router := newTestRouter(env)

	token := env.Tokens.Mint(520033, "1001", "contract.pdf")
	body, contentType := multipartBody(t, map[string]string{"contactId": "301"})

	r := httptest.NewRequest("POST", "/files/upload?token="+token, body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	// the file made it; only the note failed
	require.Equal(http.StatusCreated, w.Code)
	var resp struct {
		ID       string `json:"id"`
		Attached bool   `json:"attached"`
	}
	require.NoError(json.UnmarshalFull(w.Body, &resp))
	require.Equal("2002", resp.ID)
	require.False(resp.Attached)
}

func TestUploadRequiresToken(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520034, uploadMux(t, http.StatusCreated, &notes))
	router := newTestRouter(env)

	body, contentType := multipartBody(t, nil)
	r := httptest.NewRequest("POST", "/files/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(http.StatusUnauthorized, w.Code)
	require.JSONEq(`{"error":"unauthorized"}`, w.Body.String())
}

func TestUploadRequiresFileField(t *testing.T) {
	require := require.New(t)
	var notes atomic.Int64
	env := newTestEnv(t, 520035, uploadMux(t, http.StatusCreated, &notes))
	router := newTestRouter(env)

	token := env.Tokens.Mint(520035, "1001", "contract.pdf")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(mw.WriteField("contactId", "301"))
	require.NoError(mw.Close())

	r := httptest.NewRequest("POST", "/files/upload?token="+token, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(http.StatusBadRequest, w.Code)
}

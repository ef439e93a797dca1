package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/embedviz/pkg/types"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		f, hdr, err := r.FormFile("files")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "imgdata", string(data))
			assert.Equal(t, "a.jpg", hdr.Filename)
		}
		json.NewEncoder(w).Encode(types.UploadResult{Status: "success", Files: []string{"a.jpg"}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	res, err := c.Upload(context.Background(), "a.jpg", strings.NewReader("imgdata"))
	require.NoError(t, err)
	require.True(t, res.OK())
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/", r.URL.Path)
		assert.Equal(t, "a.jpg", r.FormValue("filename"))
		assert.Equal(t, "a cat", r.FormValue("caption"))
		w.Write([]byte(`{"matrix":[[0.1,0.9,0.4,0.2,0.8]]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL+"/", 0)
	res, err := c.Embed(context.Background(), "a.jpg", "a cat")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.9, 0.4, 0.2, 0.8}, res.Vector())
}

func TestLabelSendsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/label/", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "a.jpg", r.PostForm.Get("filename"))
		assert.Equal(t, "cat", r.PostForm.Get("user_class"))
		assert.Equal(t, "10", r.PostForm.Get("x1"))
		assert.Equal(t, "10", r.PostForm.Get("y1"))
		assert.Equal(t, "60", r.PostForm.Get("x2"))
		assert.Equal(t, "60", r.PostForm.Get("y2"))
		w.Write([]byte(`{"status":"success","class":"cat"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	ack, err := c.Label(context.Background(), types.NewLabelRequest("a.jpg", "cat", types.Rect{X1: 10, Y1: 10, X2: 60, Y2: 60}))
	require.NoError(t, err)
	require.Equal(t, "cat", ack.Class)
	require.EqualValues(t, 1, calls.Load())
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"predictions":[{"filename":"a.jpg","predicted_class":"cat"}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	res, err := c.Predict(context.Background())
	require.NoError(t, err)
	require.Equal(t, []types.Prediction{{Filename: "a.jpg", PredictedClass: "cat"}}, res.Predictions)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	_, err := c.Embed(context.Background(), "a.jpg", "x")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusInternalServerError, se.Code)
	require.Equal(t, "boom", se.Body)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("localhost", 0)
	require.Error(t, err)
	c, err := NewClient("", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultURL, c.baseURL)
}

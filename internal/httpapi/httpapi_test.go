package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/pkg/annotate"
	"github.com/menta2k/embedviz/pkg/types"
	"github.com/menta2k/embedviz/pkg/viz"
)

type stubBackend struct {
	matrix    [][]float64
	labels    []types.LabelRequest
	labelErr  error
	uploadErr error
}

func (s *stubBackend) Upload(ctx context.Context, name string, r io.Reader) (*types.UploadResult, error) {
	io.Copy(io.Discard, r)
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &types.UploadResult{Status: types.StatusSuccess, Files: []string{name}}, nil
}

func (s *stubBackend) Embed(ctx context.Context, filename, caption string) (*types.EmbedResult, error) {
	return &types.EmbedResult{Matrix: s.matrix}, nil
}

func (s *stubBackend) Label(ctx context.Context, req types.LabelRequest) (*types.LabelAck, error) {
	if s.labelErr != nil {
		return nil, s.labelErr
	}
	s.labels = append(s.labels, req)
	return &types.LabelAck{Status: types.StatusSuccess, Class: req.UserClass}, nil
}

func (s *stubBackend) Predict(ctx context.Context) (*types.PredictResult, error) {
	return &types.PredictResult{Predictions: []types.Prediction{{Filename: "a.png", PredictedClass: "cat"}}}, nil
}

func newTestServer(t *testing.T, b *stubBackend) *httptest.Server {
	log := logs.NewTestingLog(t)
	insp := embedviz.New(b, embedviz.DefaultOptions(), log)
	mux := chi.NewRouter()
	NewRouter(mux, log).Init(insp, 8<<20)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, srv *httptest.Server, field, name string, data []byte, fields map[string]string) *http.Response {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		fw.Write(data)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/images", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postJSON(t *testing.T, srv *httptest.Server, path string, v any) *http.Response {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadAndMatrix(t *testing.T) {
	srv := newTestServer(t, &stubBackend{matrix: [][]float64{{-1, 0, 1, 2, 3}}})

	resp := upload(t, srv, "file", "a.png", pngBytes(t, 40, 30), map[string]string{"caption": "a cat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decode[matrixResponse](t, resp)
	assert.Equal(t, "a.png", m.Filename)
	assert.Equal(t, 5, m.Length)
	assert.Equal(t, 3, m.Side)
	assert.Equal(t, -1.0, m.Min)
	assert.Equal(t, 3.0, m.Max)
	// padding zeros fill the tail of the last row
	assert.Equal(t, []float64{0, 0, 0}, m.Matrix[2])

	resp = get(t, srv, "/api/v1/matrix/cell?row=0&col=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[cellResponse](t, resp)
	assert.Equal(t, 1.0, c.Value)
	assert.Equal(t, "Value: 1.0000", c.Text)
	assert.InDelta(t, 0.5, c.Normalized, 1e-6)

	resp = get(t, srv, "/api/v1/matrix/cell?row=7&col=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, srv, "/api/v1/matrix/cell?row=x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, srv, "/api/v1/matrix/download")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "embedding_matrix.json")
	var grid [][]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grid))
	assert.Len(t, grid, 3)

	resp = get(t, srv, "/api/v1/matrix.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3*embedviz.DefaultOptions().Scale, 3*embedviz.DefaultOptions().Scale), img.Bounds())
}

func TestUploadAcceptsFilesField(t *testing.T) {
	srv := newTestServer(t, &stubBackend{matrix: [][]float64{{1, 2, 3, 4}}})
	resp := upload(t, srv, "files", "b.png", pngBytes(t, 10, 10), map[string]string{"caption": "dog"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, decode[matrixResponse](t, resp).Side)
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t, &stubBackend{matrix: [][]float64{{1}}})

	resp := upload(t, srv, "file", "", nil, map[string]string{"caption": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = upload(t, srv, "file", "a.png", pngBytes(t, 4, 4), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, viz.ErrMissingCaption.Error(), e.Message)

	resp = postJSON(t, srv, "/api/v1/images", map[string]string{"caption": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmptyEmbeddingIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	resp := upload(t, srv, "file", "a.png", pngBytes(t, 4, 4), map[string]string{"caption": "x"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = get(t, srv, "/api/v1/matrix")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUploadFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &stubBackend{uploadErr: errors.New("connection refused")})
	resp := upload(t, srv, "file", "a.png", pngBytes(t, 4, 4), map[string]string{"caption": "x"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Contains(t, e.Message, "connection refused")
}

func TestNothingToExport(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	for _, path := range []string{"/api/v1/matrix", "/api/v1/matrix/download", "/api/v1/matrix.png", "/api/v1/matrix/cell?row=0&col=0"} {
		resp := get(t, srv, path)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
	}
}

func TestAnnotationFlow(t *testing.T) {
	b := &stubBackend{matrix: [][]float64{{1, 2, 3, 4}}}
	srv := newTestServer(t, b)

	// drawing without an image is a conflict
	resp := postJSON(t, srv, "/api/v1/annotations/down", pointerRequest{Pointer: types.Point{X: 1, Y: 1}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = upload(t, srv, "file", "a.png", pngBytes(t, 100, 80), map[string]string{"annotate_only": "true"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	bounds := types.Bounds{Left: 100, Top: 50}
	resp = postJSON(t, srv, "/api/v1/annotations/down", pointerRequest{Pointer: types.Point{X: 160, Y: 90}, Bounds: bounds})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "drawing", decode[annotate.Snapshot](t, resp).State)

	postJSON(t, srv, "/api/v1/annotations/move", pointerRequest{Pointer: types.Point{X: 130, Y: 70}, Bounds: bounds})
	resp = postJSON(t, srv, "/api/v1/annotations/up", pointerRequest{Pointer: types.Point{X: 110, Y: 60}, Bounds: bounds})
	snap := decode[annotate.Snapshot](t, resp)
	assert.Equal(t, "finalized", snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, types.Rect{X1: 60, Y1: 40, X2: 10, Y2: 10}, *snap.Current)

	resp = postJSON(t, srv, "/api/v1/annotations/commit", commitRequest{Label: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv, "/api/v1/annotations/commit", commitRequest{Label: "cat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	region := decode[types.LabeledRegion](t, resp)
	assert.Equal(t, "cat", region.Label)
	assert.NotEmpty(t, region.ID)

	require.Len(t, b.labels, 1)
	assert.Equal(t, types.LabelRequest{Filename: "a.png", UserClass: "cat", X1: 10, Y1: 10, X2: 60, Y2: 40}, b.labels[0])

	// no rectangle left to commit
	resp = postJSON(t, srv, "/api/v1/annotations/commit", commitRequest{Label: "cat"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = get(t, srv, "/api/v1/annotations")
	snap = decode[annotate.Snapshot](t, resp)
	assert.Equal(t, "idle", snap.State)
	assert.Len(t, snap.Regions, 1)
	assert.Equal(t, []string{"cat"}, snap.Classes)

	resp = get(t, srv, "/api/v1/annotations/overlay.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())
}

func TestCommitFailureKeepsRectangle(t *testing.T) {
	b := &stubBackend{labelErr: errors.New("backend down")}
	srv := newTestServer(t, b)

	upload(t, srv, "file", "a.png", pngBytes(t, 50, 50), map[string]string{"annotate_only": "true"})
	postJSON(t, srv, "/api/v1/annotations/down", pointerRequest{Pointer: types.Point{X: 5, Y: 5}})
	postJSON(t, srv, "/api/v1/annotations/up", pointerRequest{Pointer: types.Point{X: 20, Y: 25}})

	resp := postJSON(t, srv, "/api/v1/annotations/commit", commitRequest{Label: "dog"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	snap := decode[annotate.Snapshot](t, get(t, srv, "/api/v1/annotations"))
	assert.Equal(t, "finalized", snap.State)
	assert.Empty(t, snap.Regions)

	resp = postJSON(t, srv, "/api/v1/annotations/reset", struct{}{})
	assert.Equal(t, "idle", decode[annotate.Snapshot](t, resp).State)
}

func TestAddClass(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp := postJSON(t, srv, "/api/v1/annotations/classes", classRequest{Name: "bird"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"bird"}, decode[[]string](t, resp))

	resp = postJSON(t, srv, "/api/v1/annotations/classes", classRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/api/v1/annotations/classes", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredictAndStatus(t *testing.T) {
	srv := newTestServer(t, &stubBackend{matrix: [][]float64{{1, 2}}})

	resp := get(t, srv, "/api/v1/predictions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[types.PredictResult](t, resp)
	require.Len(t, res.Predictions, 1)
	assert.Equal(t, "cat", res.Predictions[0].PredictedClass)

	upload(t, srv, "file", "a.png", pngBytes(t, 8, 8), map[string]string{"caption": "x"})
	st := decode[embedviz.Status](t, get(t, srv, "/api/v1/status"))
	assert.True(t, st.HasMatrix)
	assert.False(t, st.Busy)
	assert.Equal(t, "a.png", st.Filename)
	assert.Equal(t, "a.png", st.Annotation.Image)
}

func TestToHTTPResponse(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{viz.ErrMissingFile, http.StatusBadRequest},
		{annotate.ErrNoRect, http.StatusConflict},
		{annotate.ErrBusy, http.StatusConflict},
		{viz.ErrStale, http.StatusConflict},
		{upstream(errors.New("timeout")), http.StatusBadGateway},
		{upstream(annotate.ErrStale), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		code, _ := ToHTTPResponse(c.err)
		assert.Equal(t, c.code, code, c.err.Error())
	}
}

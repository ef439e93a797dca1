package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/pkg/types"
	"github.com/menta2k/embedviz/pkg/viz"
)

type MatrixHandler struct {
	insp           *embedviz.Inspector
	maxUploadBytes int64
	log            logs.Log
}

func NewMatrixHandler(insp *embedviz.Inspector, maxUploadBytes int64, log logs.Log) *MatrixHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &MatrixHandler{insp: insp, maxUploadBytes: maxUploadBytes, log: log}
}

type matrixResponse struct {
	Filename   string      `json:"filename"`
	Caption    string      `json:"caption"`
	Length     int         `json:"length"`
	Side       int         `json:"side"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
	Matrix     [][]float64 `json:"matrix"`
	Normalized [][]float64 `json:"normalized"`
}

type cellResponse struct {
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Value      float64 `json:"value"`
	Normalized float64 `json:"normalized"`
	Text       string  `json:"text"`
}

// uploadImage takes a multipart form with "file" and a required "caption". With
// annotate_only=true the image is only uploaded and selected for annotation.
func (h *MatrixHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := ensureMultipartForm(r, h.maxUploadBytes); err != nil {
		h.log.Warnf("%d upload: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}
	name, data, err := readUpload(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if r.FormValue("annotate_only") == "true" {
		if err := h.insp.Upload(r.Context(), name, data); err != nil {
			h.log.Warnf("upload %s: %v", name, err)
			WriteError(w, upstream(err))
			return
		}
		WriteSuccess(w, http.StatusCreated, h.insp.Status())
		return
	}

	v, err := h.insp.Visualize(r.Context(), name, data, r.FormValue("caption"))
	if err != nil {
		h.log.Warnf("visualize %s: %v", name, err)
		WriteError(w, upstream(err))
		return
	}
	WriteSuccess(w, http.StatusCreated, matrixResponse{
		Filename:   v.Filename,
		Caption:    v.Caption,
		Length:     len(v.Vector),
		Side:       v.Grid.Side(),
		Min:        v.Normalized.Min,
		Max:        v.Normalized.Max,
		Matrix:     v.Grid,
		Normalized: v.Normalized.Cells,
	})
}

func (h *MatrixHandler) getMatrix(w http.ResponseWriter, r *http.Request) {
	v, err := h.insp.Current()
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, matrixResponse{
		Filename:   v.Filename,
		Caption:    v.Caption,
		Length:     len(v.Vector),
		Side:       v.Grid.Side(),
		Min:        v.Normalized.Min,
		Max:        v.Normalized.Max,
		Matrix:     v.Grid,
		Normalized: v.Normalized.Cells,
	})
}

func (h *MatrixHandler) downloadMatrix(w http.ResponseWriter, r *http.Request) {
	f, err := h.insp.ExportMatrix()
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Write(f.Data)
}

func (h *MatrixHandler) getRaster(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.insp.WriteRaster(&buf); err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", h.insp.RasterOptions().ContentType())
	w.Write(buf.Bytes())
}

func (h *MatrixHandler) getCell(w http.ResponseWriter, r *http.Request) {
	row, err1 := strconv.Atoi(r.URL.Query().Get("row"))
	col, err2 := strconv.Atoi(r.URL.Query().Get("col"))
	if err1 != nil || err2 != nil {
		WriteError(w, fmt.Errorf("%w: row and col must be integers", ErrBadRequest))
		return
	}
	raw, norm, err := h.insp.Cell(row, col)
	if err != nil {
		if !errors.Is(err, viz.ErrNoVisualization) {
			err = fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, cellResponse{
		Row:        row,
		Col:        col,
		Value:      raw,
		Normalized: norm,
		Text:       fmt.Sprintf("Value: %.4f", raw),
	})
}

func (h *MatrixHandler) predict(w http.ResponseWriter, r *http.Request) {
	res, err := h.insp.Predict(r.Context())
	if err != nil {
		h.log.Warnf("predict: %v", err)
		WriteError(w, upstream(err))
		return
	}
	if res.Predictions == nil {
		res.Predictions = []types.Prediction{}
	}
	WriteSuccess(w, http.StatusOK, res)
}

func (h *MatrixHandler) status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, h.insp.Status())
}

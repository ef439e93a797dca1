package httpapi

import (
	"net/http"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/pkg/annotate"
	"github.com/menta2k/embedviz/pkg/raster"
	"github.com/menta2k/embedviz/pkg/types"
)

type AnnotationHandler struct {
	insp *embedviz.Inspector
	log  logs.Log
}

func NewAnnotationHandler(insp *embedviz.Inspector, log logs.Log) *AnnotationHandler {
	return &AnnotationHandler{insp: insp, log: log}
}

// pointerRequest carries a viewport-relative pointer and the image element's
// bounding box at the time of the event
type pointerRequest struct {
	Pointer types.Point  `json:"pointer"`
	Bounds  types.Bounds `json:"bounds"`
}

type commitRequest struct {
	Label string `json:"label"`
}

type classRequest struct {
	Name string `json:"name"`
}

func (h *AnnotationHandler) list(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, h.insp.Annotator().Session().Snapshot())
}

func (h *AnnotationHandler) dispatch(w http.ResponseWriter, cmd annotate.Command) {
	if err := h.insp.Dispatch(cmd); err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, h.insp.Annotator().Session().Snapshot())
}

func (h *AnnotationHandler) pointerDown(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	h.dispatch(w, annotate.PointerDown{Pointer: req.Pointer, Bounds: req.Bounds})
}

func (h *AnnotationHandler) pointerMove(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	h.dispatch(w, annotate.PointerMove{Pointer: req.Pointer, Bounds: req.Bounds})
}

func (h *AnnotationHandler) pointerUp(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	h.dispatch(w, annotate.PointerUp{Pointer: req.Pointer, Bounds: req.Bounds})
}

func (h *AnnotationHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, annotate.Reset{})
}

func (h *AnnotationHandler) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	region, err := h.insp.Commit(r.Context(), req.Label)
	if err != nil {
		h.log.Warnf("commit %q: %v", req.Label, err)
		WriteError(w, upstream(err))
		return
	}
	WriteSuccess(w, http.StatusCreated, region)
}

func (h *AnnotationHandler) addClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, annotate.ErrEmptyLabel)
		return
	}
	h.insp.Annotator().Session().AddClass(req.Name)
	WriteSuccess(w, http.StatusOK, h.insp.Annotator().Session().Classes())
}

func (h *AnnotationHandler) overlay(w http.ResponseWriter, r *http.Request) {
	img, err := h.insp.Overlay()
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := raster.Encode(w, img, raster.DefaultOptions()); err != nil {
		h.log.Errorf("encode overlay: %v", err)
	}
}

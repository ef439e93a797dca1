package httpapi

import (
	"github.com/cyclopcam/logs"
	"github.com/go-chi/chi/v5"

	"github.com/menta2k/embedviz"
)

type Router struct {
	router *chi.Mux
	log    logs.Log
}

func NewRouter(router *chi.Mux, log logs.Log) *Router {
	return &Router{router: router, log: log}
}

func (r *Router) Init(insp *embedviz.Inspector, maxUploadBytes int64) {
	r.router.Route("/api/v1", func(v1 chi.Router) {
		mh := NewMatrixHandler(insp, maxUploadBytes, r.log)
		registerMatrixRoutes(v1, mh)

		ah := NewAnnotationHandler(insp, r.log)
		registerAnnotationRoutes(v1, ah)
	})
}

func registerMatrixRoutes(router chi.Router, h *MatrixHandler) {
	router.Post("/images", h.uploadImage)
	router.Get("/matrix", h.getMatrix)
	router.Get("/matrix/download", h.downloadMatrix)
	router.Get("/matrix.png", h.getRaster)
	router.Get("/matrix/cell", h.getCell)
	router.Get("/predictions", h.predict)
	router.Get("/status", h.status)
}

func registerAnnotationRoutes(router chi.Router, h *AnnotationHandler) {
	router.Route("/annotations", func(an chi.Router) {
		an.Get("/", h.list)
		an.Post("/down", h.pointerDown)
		an.Post("/move", h.pointerMove)
		an.Post("/up", h.pointerUp)
		an.Post("/reset", h.reset)
		an.Post("/commit", h.commit)
		an.Post("/classes", h.addClass)
		an.Get("/overlay.png", h.overlay)
	})
}

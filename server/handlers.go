package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

const defaultSimilarK = 5

// Handler serves the API routes.
type Handler struct {
	engine *medkg.Engine
}

func NewHandler(engine *medkg.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts every route on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.health)

	ex := e.Group("/extract")
	ex.POST("/triples", h.extractTriples)
	ex.POST("/batch", h.extractBatch)
	ex.POST("/export", h.exportTriples)

	kg := e.Group("/kg")
	kg.POST("/add-triple", h.addTriple)
	kg.GET("/query", h.query)
	kg.GET("/statistics", h.statistics)
	kg.GET("/path", h.path)
	kg.GET("/similar", h.similar)
	kg.DELETE("", h.clear)

	e.GET("/documents", h.documents)
}

func (h *Handler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "专病知识图谱 API",
		"version": medkg.Version,
	})
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": h.engine.GraphStore().Backend(),
		"tagger":  h.engine.HasTagger(),
	})
}

type extractRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Store  bool   `json:"store"`
}

// POST /extract/triples
func (h *Handler) extractTriples(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()

	res, err := h.engine.Extract(ctx, req.Text, req.Source)
	if err != nil {
		return err
	}
	body := map[string]any{"success": true, "data": res}
	if req.Store {
		n, err := h.engine.StoreTriples(ctx, res.Triples)
		if err != nil {
			return err
		}
		body["stored"] = n
	}
	return c.JSON(http.StatusOK, body)
}

type batchRequest struct {
	Texts  []string `json:"texts"`
	Source string   `json:"source"`
}

// POST /extract/batch
func (h *Handler) extractBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if len(req.Texts) == 0 {
		return badRequest("texts is required")
	}
	items := h.engine.ExtractBatch(c.Request().Context(), req.Texts, req.Source)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": items})
}

type exportRequest struct {
	Triples []extraction.Triple `json:"triples"`
	Format  string              `json:"format"`
}

// POST /extract/export
func (h *Handler) exportTriples(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Format == "" {
		req.Format = extraction.FormatCSV
	}
	out, err := h.engine.Export(req.Triples, req.Format)
	if err != nil {
		return err
	}
	contentType := "text/csv; charset=UTF-8"
	if req.Format == extraction.FormatJSONL {
		contentType = "application/x-ndjson; charset=UTF-8"
	}
	return c.Blob(http.StatusOK, contentType, []byte(out))
}

// POST /kg/add-triple
func (h *Handler) addTriple(c echo.Context) error {
	var req store.TripleInput
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(err.Error())
	}
	if err := h.engine.AddTriple(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "三元组添加成功"})
}

// GET /kg/query?name=&depth=
func (h *Handler) query(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return badRequest("name is required")
	}
	depth, err := intParam(c, "depth", 1, 1, store.MaxQueryDepth)
	if err != nil {
		return err
	}
	edges, err := h.engine.Query(c.Request().Context(), name, depth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"entity":  name,
		"count":   len(edges),
		"data":    edges,
	})
}

// GET /kg/statistics
func (h *Handler) statistics(c echo.Context) error {
	stats, err := h.engine.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": stats})
}

// GET /kg/path?start=&end=&max_depth=
func (h *Handler) path(c echo.Context) error {
	start := strings.TrimSpace(c.QueryParam("start"))
	end := strings.TrimSpace(c.QueryParam("end"))
	if start == "" || end == "" {
		return badRequest("start and end are required")
	}
	maxDepth, err := intParam(c, "max_depth", 3, 1, store.MaxPathDepth)
	if err != nil {
		return err
	}
	paths, err := h.engine.Path(c.Request().Context(), start, end, maxDepth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"start":      start,
		"end":        end,
		"path_count": len(paths),
		"data":       paths,
	})
}

// GET /kg/similar?name=&k=
func (h *Handler) similar(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return badRequest("name is required")
	}
	k, err := intParam(c, "k", defaultSimilarK, 1, 100)
	if err != nil {
		return err
	}
	res, err := h.engine.Similar(c.Request().Context(), name, k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "entity": name, "data": res})
}

// DELETE /kg
func (h *Handler) clear(c echo.Context) error {
	if err := h.engine.Clear(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "图谱已清空"})
}

// GET /documents
func (h *Handler) documents(c echo.Context) error {
	docs, err := h.engine.Documents(c.Request().Context())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": docs})
}

// intParam reads an optional integer query parameter within [lo, hi].
func intParam(c echo.Context, name string, def, lo, hi int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, badRequest(fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
	}
	return n, nil
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extraction.ErrEmptyText),
		errors.Is(err, extraction.ErrUnsupportedFormat),
		errors.Is(err, store.ErrInvalidLabel),
		errors.Is(err, store.ErrInvalidDepth):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, medkg.ErrUnsupportedBackend):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// errorHandler writes {"success": false, "error": message}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, map[string]any{"success": false, "error": msg})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/extract"
)

// handleQuery answers a question against the caller's session. A missing
// session ID mints a new session; the ID always comes back in the
// X-Session-ID response header so the client can persist it.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.svc.Query(
		c.Request().Context(),
		c.Request().Header.Get(HeaderSessionID),
		req.Question,
		req.MaxResults,
		req.APIKey,
	)
	if err != nil {
		return err
	}

	c.Response().Header().Set(HeaderSessionID, res.SessionID)
	return c.JSON(http.StatusOK, QueryResponse{
		Answer:     res.Answer,
		Sources:    res.Sources,
		Confidence: res.Confidence,
	})
}

// handleUpload ingests one uploaded file. The session ID comes from the
// session_id form field, with the X-Session-ID header as fallback; empty
// means mint a new session.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part is required")
	}
	if fileHeader.Size > s.config.Ingest.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("file exceeds the %d byte upload limit", s.config.Ingest.MaxUploadBytes))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.config.Ingest.MaxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.config.Ingest.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("file exceeds the %d byte upload limit", s.config.Ingest.MaxUploadBytes))
	}

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		sessionID = c.Request().Header.Get(HeaderSessionID)
	}

	res, err := s.svc.Ingest(c.Request().Context(), sessionID, extract.Input{
		Data:     data,
		Filename: fileHeader.Filename,
	}, "")
	if err != nil {
		return err
	}

	s.logger.Debug("upload ingested",
		zap.String("session_id", res.SessionID),
		zap.String("name", res.Document.Name),
		zap.Int("chunks", res.Document.ChunkCount),
	)
	c.Response().Header().Set(HeaderSessionID, res.SessionID)
	return c.JSON(http.StatusOK, UploadResponse{
		SessionID: res.SessionID,
		Chunks:    res.Document.ChunkCount,
		Name:      res.Document.Name,
		Type:      res.Document.Kind,
	})
}

// handleAddURL fetches a web page and ingests its readable text.
func (s *Server) handleAddURL(c echo.Context) error {
	var req AddURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}

	res, err := s.svc.Ingest(
		c.Request().Context(),
		c.Request().Header.Get(HeaderSessionID),
		extract.Input{URL: req.URL},
		"",
	)
	if err != nil {
		return err
	}

	c.Response().Header().Set(HeaderSessionID, res.SessionID)
	return c.JSON(http.StatusOK, AddURLResponse{Chunks: res.Document.ChunkCount})
}

// handleDocuments lists the session's document catalog.
func (s *Server) handleDocuments(c echo.Context) error {
	sessionID := c.Request().Header.Get(HeaderSessionID)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "X-Session-ID header is required")
	}

	docs, err := s.svc.Documents(sessionID)
	if err != nil {
		return err
	}

	infos := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		infos[i] = DocumentInfo{
			Name:   d.Name,
			Type:   d.Kind,
			Chunks: d.ChunkCount,
		}
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Documents: infos})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "finbotd",
	})
}

package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"tradingview-extract/internal/dto"
	"tradingview-extract/internal/repository"
	"tradingview-extract/internal/service"
)

func (h *HttpAPIHandler) SetupExtract(base *echo.Group) {
	extractGroup := base.Group("/extract")
	extractGroup.POST("", h.runExtraction)

	base.GET("/runs", h.listRuns)
}

// runExtraction accepts one or more report screenshots as multipart files
// under the "images" field and answers with the extraction summary.
func (h *HttpAPIHandler) runExtraction(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid multipart request"})
	}

	files := form.File["images"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "no images uploaded"})
	}

	// Files are staged on disk because chart names derive from filenames.
	tmpDir, err := os.MkdirTemp("", "report-upload-*")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to stage uploads"})
	}
	defer os.RemoveAll(tmpDir)

	var paths []string
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "failed to read upload " + file.Filename})
		}

		path := filepath.Join(tmpDir, filepath.Base(file.Filename))
		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to stage upload " + file.Filename})
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to stage upload " + file.Filename})
		}
		paths = append(paths, path)
	}

	summary, err := h.service.ExtractionService.ExtractBatch(ctx, paths)
	if err != nil {
		if errors.Is(err, repository.ErrEngineUnavailable) {
			return c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
		}
		if errors.Is(err, service.ErrNoImages) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to run extraction"})
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *HttpAPIHandler) listRuns(c echo.Context) error {
	ctx := c.Request().Context()

	if h.runRepo == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "run history is disabled"})
	}

	req := new(dto.RunsRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	runs, err := h.runRepo.Recent(ctx, req.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list runs"})
	}

	return c.JSON(http.StatusOK, runs)
}

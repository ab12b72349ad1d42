package blobstore

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayursutra/portal/internal/platform/auth"
)

// BlobHandler serves stored blobs. Uploads go through the owning domain
// (practitioner photo, case-note attachment) so they can be authorised there.
type BlobHandler struct {
	store BlobStore
}

func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// RegisterRoutes mounts blob routes on the supplied Echo group.
func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/blobs/:id/metadata", h.handleGetMetadata)
	g.GET("/blobs/:id", h.handleDownload)
}

// canRead: case-note attachments are clinical records and only doctors may
// read them. Practitioner photos are open to any signed-in user.
func canRead(ctx context.Context, meta *BlobMetadata) bool {
	if meta.Category == CategoryCaseAttachment {
		return auth.HasRole(ctx, auth.RoleDoctor)
	}
	return true
}

func contentDisposition(meta *BlobMetadata) string {
	disposition := "attachment"
	if meta.Category == CategoryPractitionerPhoto {
		disposition = "inline"
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": meta.FileName}); v != "" {
		return v
	}
	return disposition
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	ctx := c.Request().Context()
	rc, meta, err := h.store.Download(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()
	if !canRead(ctx, meta) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to read this file")
	}

	c.Response().Header().Set("Content-Disposition", contentDisposition(meta))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	ctx := c.Request().Context()
	meta, err := h.store.GetMetadata(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !canRead(ctx, meta) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to read this file")
	}
	return c.JSON(http.StatusOK, meta)
}

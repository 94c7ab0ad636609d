package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/models"
)

type artifactUploader interface {
	UploadArtifact(ctx context.Context, appID, buildID uuid.UUID, fileName string, content []byte) (*models.Artifact, error)
}

// ArtifactHandler receives SPA bundles from the build worker
type ArtifactHandler struct {
	components  *bootstrap.Components
	artifactSvc artifactUploader
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(c *container.Container) *ArtifactHandler {
	return &ArtifactHandler{
		components:  c.Components,
		artifactSvc: c.ArtifactService,
	}
}

// UploadArtifact stores a zip bundle and attaches it to the build's placeholder.
// Accepts a multipart "file" field or a raw request body.
// POST /api/v1/apps/:app_id/builds/:build_id/artifact
func (h *ArtifactHandler) UploadArtifact(c echo.Context) error {
	appID, ok, err := uuidParam(c, "app_id")
	if !ok {
		return err
	}
	buildID, ok, err := uuidParam(c, "build_id")
	if !ok {
		return err
	}

	fileName, content, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "failed to read artifact upload",
		})
	}
	if len(content) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "artifact is empty",
		})
	}

	h.components.Logger.Info("receiving artifact",
		"app_id", appID,
		"build_id", buildID,
		"size", len(content))

	artifact, err := h.artifactSvc.UploadArtifact(c.Request().Context(), appID, buildID, fileName, content)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to store artifact")
	}

	return c.JSON(http.StatusCreated, artifact)
}

func readUpload(c echo.Context) (string, []byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		return fh.Filename, content, err
	}

	name := c.QueryParam("filename")
	if name == "" {
		name = "artifact.zip"
	}
	content, err := io.ReadAll(c.Request().Body)
	return name, content, err
}

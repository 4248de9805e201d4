package analyses

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bloodwork-backend/internal/shared/server/respond"
)

// multipartSlack covers multipart framing on top of the file ceiling.
const multipartSlack = 1 << 20

// Runner is the pipeline entry point the handler depends on.
type Runner interface {
	Run(ctx context.Context, req Request) (AnalysisResult, error)
}

// Handler wires HTTP handlers to the analysis pipeline.
type Handler struct {
	Svc            Runner
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc Runner, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
}

func (h *Handler) createAnalysis(c *gin.Context) {
	runID := uuid.NewString()
	c.Set("runId", runID)
	c.Header("X-Run-Id", runID)

	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartSlack)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.tooLarge(c)
			return
		}
		h.invalidUpload(c, "file is required", []map[string]string{
			{"field": "file", "issue": "required"},
		})
		return
	}

	data, err := readFormFile(fh)
	if err != nil {
		if isBodyTooLarge(err) {
			h.tooLarge(c)
			return
		}
		h.invalidUpload(c, "failed to read uploaded file", nil)
		return
	}

	result, err := h.Svc.Run(c.Request.Context(), Request{
		Data:      data,
		MediaType: declaredMediaType(fh, data),
		FileName:  fh.Filename,
		RunID:     runID,
	})
	if err != nil {
		var runErr *RunError
		if errors.As(err, &runErr) {
			h.fail(c, runErr.Stage, runErr.Kind)
		} else {
			h.fail(c, StageReceived, KindInternal)
		}
		status, code, msg, details := httpError(err)
		respond.Error(c, status, code, msg, details)
		return
	}

	c.Set("statusTransition", StageInterpreted+"->"+StageDone)
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, stage, kind string) {
	c.Set("failedStage", stage)
	c.Set("failureKind", kind)
	c.Set("statusTransition", stage+"->failed")
}

func (h *Handler) invalidUpload(c *gin.Context, msg string, details any) {
	h.fail(c, StageReceived, KindValidation)
	respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, msg, details)
}

func (h *Handler) tooLarge(c *gin.Context) {
	h.fail(c, StageStaged, KindOversize)
	respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeFileTooLarge, "The uploaded file is too large.", map[string]any{
		"maxBytes": h.MaxUploadBytes,
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// declaredMediaType prefers the part's Content-Type and sniffs only when the
// client sent nothing useful.
func declaredMediaType(fh *multipart.FileHeader, data []byte) string {
	declared := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared
	}
	return http.DetectContentType(data)
}

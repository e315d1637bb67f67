package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/chative-bank-onboarding/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	nodex "github.com/tanpawarit/chative-bank-onboarding/agent/nodes"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

const (
	sessionHeader  = "X-Session-ID"
	maxImageBytes  = 10 << 20
	maxImagesCount = 8
)

// Workflow is the orchestrator surface served over HTTP.
type Workflow interface {
	HandleMessage(ctx context.Context, req orchestratorx.Request) (orchestratorx.Response, error)
	Stream(ctx context.Context, req orchestratorx.Request) *eventx.Stream
	Reset(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (statex.Session, error)
}

type Handlers struct {
	workflow Workflow
}

func NewHandlers(workflow Workflow) *Handlers {
	return &Handlers{workflow: workflow}
}

type messageBody struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// HandleBusiness runs one turn and answers with the terminal message.
func (h *Handlers) HandleBusiness(c *gin.Context) {
	req, err := bindRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.workflow.HandleMessage(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			badRequest(c, err)
			return
		}
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("handle business request")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": nodex.ReplyGeneric,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StreamBusiness runs one turn and relays every event as a server-sent event.
func (h *Handlers) StreamBusiness(c *gin.Context) {
	req, err := bindRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := validateRequest(req); err != nil {
		badRequest(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	stream := h.workflow.Stream(c.Request.Context(), req)
	defer stream.Close()

	for ev := range stream.Events() {
		if err := eventx.WriteSSE(c.Writer, eventx.Display(ev)); err != nil {
			log.Info().Err(err).Str("session_id", req.SessionID).Str("run_id", stream.RunID()).Msg("sse client gone")
			return
		}
		c.Writer.Flush()
	}
}

func (h *Handlers) GetSession(c *gin.Context) {
	st, err := h.workflow.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": nodex.ReplyGeneric})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) ResetSession(c *gin.Context) {
	if err := h.workflow.Reset(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": nodex.ReplyGeneric})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindRequest accepts a multipart form (content, images[], session_id) or a JSON body.
func bindRequest(c *gin.Context) (orchestratorx.Request, error) {
	var req orchestratorx.Request

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body messageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			return req, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
		}
		req.SessionID = body.SessionID
		req.Text = body.Content
	} else {
		req.SessionID = c.PostForm("session_id")
		req.Text = c.PostForm("content")

		images, err := readImages(c)
		if err != nil {
			return req, err
		}
		req.Images = images
	}

	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = c.GetHeader(sessionHeader)
	}
	return req, nil
}

func readImages(c *gin.Context) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: parse multipart form: %v", contractx.ErrValidation, err)
	}

	var headers []*multipart.FileHeader
	for _, field := range []string{"images[]", "images"} {
		headers = append(headers, form.File[field]...)
	}
	if len(headers) > maxImagesCount {
		return nil, fmt.Errorf("%w: at most %d images per request", contractx.ErrValidation, maxImagesCount)
	}

	images := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("%w: image %s exceeds %d bytes", contractx.ErrValidation, fh.Filename, maxImageBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open image %s: %v", contractx.ErrValidation, fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read image %s: %v", contractx.ErrValidation, fh.Filename, err)
		}
		images = append(images, data)
	}
	return images, nil
}

func validateRequest(req orchestratorx.Request) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, orchestratorx.ErrInvalidSession)
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Images) == 0 {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, orchestratorx.ErrInvalidMessage)
	}
	return nil
}

func badRequest(c *gin.Context, err error) {
	log.Debug().Err(err).Str("path", c.FullPath()).Msg("rejected request")
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": nodex.ReplyInvalidRequest,
		"error":   err.Error(),
	})
}

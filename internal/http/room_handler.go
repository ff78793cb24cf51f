package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/realtime"
	"social-chat/internal/service"
)

const roomNotFoundMsg = "Chat room not found or you do not have access"

// multipartOverhead cubre los headers del form encima del limite del archivo.
const multipartOverhead = 1 << 20

// RoomHandler expone salas, historial y subida de archivos.
type RoomHandler struct {
	logger       *zap.Logger
	rooms        *service.RoomService
	attachments  *service.AttachmentService
	mediaBaseURL string
	maxUpload    int64
}

func NewRoomHandler(logger *zap.Logger, rooms *service.RoomService, attachments *service.AttachmentService, mediaBaseURL string, maxUpload int64) *RoomHandler {
	return &RoomHandler{
		logger:       logger,
		rooms:        rooms,
		attachments:  attachments,
		mediaBaseURL: strings.TrimSuffix(mediaBaseURL, "/"),
		maxUpload:    maxUpload,
	}
}

// List maneja GET /chat/rooms/.
func (h *RoomHandler) List(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	rooms, err := h.rooms.List(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list rooms failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not list rooms")
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// Create maneja POST /chat/rooms/.
func (h *RoomHandler) Create(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req struct {
		Name      string  `json:"name"`
		IsGroup   bool    `json:"is_group"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create room request", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "invalid request")
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), claims.UserID, service.CreateRoomInput{
		Name:      req.Name,
		IsGroup:   req.IsGroup,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRoom),
			errors.Is(err, service.ErrUnknownMember):
			errorJSON(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("create room failed", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not create room")
		}
		return
	}
	c.JSON(http.StatusCreated, room)
}

// Get maneja GET /chat/rooms/:room_id/.
func (h *RoomHandler) Get(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	roomID, ok := idParam(c, "room_id")
	if !ok {
		return
	}
	room, err := h.rooms.Get(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		h.roomError(c, "get room", err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// Messages maneja GET /chat/rooms/:room_id/messages/.
func (h *RoomHandler) Messages(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	roomID, ok := idParam(c, "room_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeID, _ := strconv.ParseInt(c.Query("before_id"), 10, 64)

	msgs, err := h.rooms.Messages(c.Request.Context(), claims.UserID, roomID, beforeID, limit)
	if err != nil {
		h.roomError(c, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Upload maneja POST /chat/rooms/:room_id/upload/.
func (h *RoomHandler) Upload(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	roomID, ok := idParam(c, "room_id")
	if !ok {
		return
	}
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	var input service.UploadInput
	fh, err := c.FormFile("file")
	if err == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			h.logger.Error("open upload failed", zap.Error(oerr))
			errorJSON(c, http.StatusInternalServerError, "could not read file")
			return
		}
		defer f.Close()
		input.Filename = fh.Filename
		input.Body = f
	} else {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorJSON(c, http.StatusBadRequest, "File too large")
			return
		}
	}
	input.UserID = claims.UserID
	input.RoomID = roomID
	input.BaseURL = h.baseURL(c)

	res, err := h.attachments.Upload(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			errorJSON(c, http.StatusNotFound, roomNotFoundMsg)
		case errors.Is(err, service.ErrFileRequired):
			errorJSON(c, http.StatusBadRequest, "No file provided")
		case errors.Is(err, service.ErrFileTooLarge):
			errorJSON(c, http.StatusBadRequest, "File too large")
		case errors.Is(err, realtime.ErrPersistence):
			h.logger.Error("upload not persisted", zap.Int64("room_id", roomID), zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not save message")
		default:
			h.logger.Error("upload failed", zap.Int64("room_id", roomID), zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "could not upload file")
		}
		return
	}
	c.JSON(http.StatusCreated, res)
}

// baseURL usa MEDIA_BASE_URL si esta configurado y si no el host del request.
func (h *RoomHandler) baseURL(c *gin.Context) string {
	if h.mediaBaseURL != "" {
		return h.mediaBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *RoomHandler) roomError(c *gin.Context, op string, err error) {
	if errors.Is(err, service.ErrRoomNotFound) {
		errorJSON(c, http.StatusNotFound, roomNotFoundMsg)
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	errorJSON(c, http.StatusInternalServerError, "internal error")
}

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/service"
)

// RelationshipHandler expone amistad, seguimiento y bloqueo.
type RelationshipHandler struct {
	logger *zap.Logger
	rels   *service.RelationshipService
}

func NewRelationshipHandler(logger *zap.Logger, rels *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{logger: logger, rels: rels}
}

// SendFriendRequest maneja POST /users/friend-request/:to_user_id/.
func (h *RelationshipHandler) SendFriendRequest(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	toID, ok := idParam(c, "to_user_id")
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid request")
			return
		}
	}

	id, err := h.rels.SendFriendRequest(c.Request.Context(), claims.UserID, toID, req.Message)
	if err != nil {
		h.fail(c, "friend request", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Friend request sent", "id": id})
}

// FriendRequestAction maneja POST /users/friend-request-action/:request_id/.
func (h *RelationshipHandler) FriendRequestAction(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	requestID, ok := idParam(c, "request_id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid action")
		return
	}

	action := service.FriendAction(req.Action)
	if err := h.rels.RespondFriendRequest(c.Request.Context(), claims.UserID, requestID, action); err != nil {
		h.fail(c, "friend request action", err)
		return
	}
	msgs := map[service.FriendAction]string{
		service.FriendActionAccept: "Friend request accepted",
		service.FriendActionReject: "Friend request rejected",
		service.FriendActionCancel: "Friend request cancelled",
	}
	messageJSON(c, http.StatusOK, msgs[action])
}

// Follow maneja POST /users/follow/:to_user_id/.
func (h *RelationshipHandler) Follow(c *gin.Context) {
	h.pairAction(c, "follow", h.rels.Follow, http.StatusCreated, "Now following user")
}

// Unfollow maneja DELETE /users/follow/:to_user_id/.
func (h *RelationshipHandler) Unfollow(c *gin.Context) {
	h.pairAction(c, "unfollow", h.rels.Unfollow, http.StatusOK, "Unfollowed user")
}

// Block maneja POST /users/block/:to_user_id/.
func (h *RelationshipHandler) Block(c *gin.Context) {
	h.pairAction(c, "block", h.rels.Block, http.StatusCreated, "User blocked")
}

// Unblock maneja DELETE /users/block/:to_user_id/.
func (h *RelationshipHandler) Unblock(c *gin.Context) {
	h.pairAction(c, "unblock", h.rels.Unblock, http.StatusOK, "User unblocked")
}

type pairFunc func(ctx context.Context, actorID, targetID int64) error

func (h *RelationshipHandler) pairAction(c *gin.Context, op string, fn pairFunc, status int, msg string) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	toID, ok := idParam(c, "to_user_id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), claims.UserID, toID); err != nil {
		h.fail(c, op, err)
		return
	}
	messageJSON(c, status, msg)
}

func (h *RelationshipHandler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		errorJSON(c, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrFriendRequestNotFound):
		errorJSON(c, http.StatusNotFound, "Friend request not found")
	case errors.Is(err, service.ErrSelfAction),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrBlocked),
		errors.Is(err, service.ErrFriendRequestExists),
		errors.Is(err, service.ErrInvalidFriendAction),
		errors.Is(err, service.ErrAlreadyFollowing),
		errors.Is(err, service.ErrNotFollowing),
		errors.Is(err, service.ErrAlreadyBlocked),
		errors.Is(err, service.ErrNotBlocked):
		errorJSON(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
	}
}

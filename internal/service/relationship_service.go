package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
)

var (
	ErrSelfAction            = errors.New("action not allowed on yourself")
	ErrAlreadyFriends        = errors.New("already friends")
	ErrBlocked               = errors.New("user blocked")
	ErrFriendRequestExists   = errors.New("friend request already sent")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrInvalidFriendAction   = errors.New("invalid action")
	ErrAlreadyFollowing      = errors.New("already following")
	ErrNotFollowing          = errors.New("not following")
	ErrAlreadyBlocked        = errors.New("already blocked")
	ErrNotBlocked            = errors.New("not blocked")
)

type FriendAction string

const (
	FriendActionAccept FriendAction = "accept"
	FriendActionReject FriendAction = "reject"
	FriendActionCancel FriendAction = "cancel"
)

// RelationshipService aplica las reglas de amistad, seguimiento y bloqueo.
type RelationshipService struct {
	logger *zap.Logger
	users  repository.UserRepository
	rels   repository.RelationshipRepository
}

func NewRelationshipService(logger *zap.Logger, users repository.UserRepository, rels repository.RelationshipRepository) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipService{logger: logger, users: users, rels: rels}
}

func (s *RelationshipService) SendFriendRequest(ctx context.Context, fromID, toID int64, message string) (int64, error) {
	if err := s.checkTarget(ctx, fromID, toID); err != nil {
		return 0, err
	}
	friends, err := s.rels.AreFriends(ctx, fromID, toID)
	if err != nil {
		return 0, err
	}
	if friends {
		return 0, ErrAlreadyFriends
	}
	if blocked, err := s.blockedEitherWay(ctx, fromID, toID); err != nil || blocked {
		return 0, firstErr(err, ErrBlocked)
	}

	id, err := s.rels.CreateFriendRequest(ctx, domain.FriendRequest{
		FromUserID: fromID,
		ToUserID:   toID,
		Message:    strings.TrimSpace(message),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return 0, ErrFriendRequestExists
		}
		return 0, err
	}
	return id, nil
}

// RespondFriendRequest: accept y reject solo el destinatario, cancel solo el remitente.
// Una solicitud ajena se reporta como inexistente.
func (s *RelationshipService) RespondFriendRequest(ctx context.Context, userID, requestID int64, action FriendAction) error {
	req, err := s.rels.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrFriendRequestNotFound
		}
		return err
	}

	switch action {
	case FriendActionAccept, FriendActionReject:
		if req.ToUserID != userID {
			return ErrFriendRequestNotFound
		}
	case FriendActionCancel:
		if req.FromUserID != userID {
			return ErrFriendRequestNotFound
		}
	default:
		return ErrInvalidFriendAction
	}

	switch action {
	case FriendActionAccept:
		err = s.rels.AcceptFriendRequest(ctx, req)
	case FriendActionReject:
		err = s.rels.RejectFriendRequest(ctx, req.ID)
	default:
		err = s.rels.DeleteFriendRequest(ctx, req.ID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("friend request updated", zap.Int64("request_id", req.ID), zap.String("action", string(action)))
	return nil
}

func (s *RelationshipService) Follow(ctx context.Context, followerID, followeeID int64) error {
	if err := s.checkTarget(ctx, followerID, followeeID); err != nil {
		return err
	}
	following, err := s.rels.Follows(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if following {
		return ErrAlreadyFollowing
	}
	if err := s.rels.AddFollow(ctx, followerID, followeeID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrAlreadyFollowing
		}
		return err
	}
	return nil
}

func (s *RelationshipService) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	if err := s.checkUser(ctx, followeeID); err != nil {
		return err
	}
	following, err := s.rels.Follows(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !following {
		return ErrNotFollowing
	}
	return s.rels.RemoveFollow(ctx, followerID, followeeID)
}

// Block tambien elimina la amistad y el seguimiento del bloqueador.
func (s *RelationshipService) Block(ctx context.Context, blockerID, blockedID int64) error {
	if err := s.checkTarget(ctx, blockerID, blockedID); err != nil {
		return err
	}
	blocked, err := s.rels.IsBlocked(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrAlreadyBlocked
	}
	if err := s.rels.Block(ctx, blockerID, blockedID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrAlreadyBlocked
		}
		return err
	}
	return nil
}

func (s *RelationshipService) Unblock(ctx context.Context, blockerID, blockedID int64) error {
	if err := s.checkUser(ctx, blockedID); err != nil {
		return err
	}
	blocked, err := s.rels.IsBlocked(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if !blocked {
		return ErrNotBlocked
	}
	return s.rels.Unblock(ctx, blockerID, blockedID)
}

func (s *RelationshipService) checkTarget(ctx context.Context, actorID, targetID int64) error {
	if err := s.checkUser(ctx, targetID); err != nil {
		return err
	}
	if actorID == targetID {
		return ErrSelfAction
	}
	return nil
}

func (s *RelationshipService) checkUser(ctx context.Context, id int64) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *RelationshipService) blockedEitherWay(ctx context.Context, a, b int64) (bool, error) {
	blocked, err := s.rels.IsBlocked(ctx, a, b)
	if err != nil || blocked {
		return blocked, err
	}
	return s.rels.IsBlocked(ctx, b, a)
}

package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"littlejoys/internal/domain"
	"littlejoys/internal/messaging"
	"littlejoys/internal/observability"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// InteractionPublisher pushes interaction events onto the message bus.
// Publishing is best effort; a bus outage never fails the user's action.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, event *messaging.InteractionEvent) error
}

type PostService struct {
	postRepo    domain.PostRepository
	likeRepo    domain.LikeRepository
	commentRepo domain.CommentRepository
	publisher   InteractionPublisher
}

func NewPostService(postRepo domain.PostRepository, likeRepo domain.LikeRepository, commentRepo domain.CommentRepository, publisher InteractionPublisher) *PostService {
	return &PostService{
		postRepo:    postRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		publisher:   publisher,
	}
}

func (s *PostService) CreatePost(ctx context.Context, post *domain.Post) error {
	post.Content = strings.TrimSpace(post.Content)
	if post.Content == "" {
		return domain.ErrContentRequired
	}
	if utf8.RuneCountInString(post.Content) > domain.MaxPostContentLength {
		return domain.ErrContentTooLong
	}

	return s.postRepo.Create(ctx, post)
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID string) (*domain.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

func (s *PostService) ListPosts(ctx context.Context, opts domain.PostListOptions) (*domain.PostPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}
	if opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}
	if opts.SortType != "hottest" {
		opts.SortType = "latest"
	}
	return s.postRepo.List(ctx, opts)
}

// DeletePost hides a post. Only the author may delete their own entry.
func (s *PostService) DeletePost(ctx context.Context, id, userID string) error {
	ownerID, err := s.postRepo.OwnerOf(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return domain.ErrNotPostOwner
	}
	return s.postRepo.SoftDelete(ctx, id)
}

// ToggleLike flips the user's like on a post and returns the new state with
// the current like count. Liking publishes an interaction event for the post
// owner; unliking stays silent.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	ownerID, err := s.postRepo.OwnerOf(ctx, postID)
	if err != nil {
		return false, 0, err
	}

	liked, err := s.likeRepo.Exists(ctx, postID, userID)
	if err != nil {
		return false, 0, err
	}

	if liked {
		if err := s.likeRepo.Remove(ctx, postID, userID); err != nil {
			return false, 0, err
		}
	} else {
		if err := s.likeRepo.Add(ctx, postID, userID); err != nil {
			return false, 0, err
		}
		s.publish(ctx, &messaging.InteractionEvent{
			Kind:        messaging.KindPostLiked,
			PostID:      postID,
			PostOwnerID: ownerID,
			ActorID:     userID,
		})
	}

	count, err := s.likeRepo.CountForPost(ctx, postID)
	if err != nil {
		return false, 0, err
	}
	return !liked, count, nil
}

func (s *PostService) AddComment(ctx context.Context, comment *domain.Comment) error {
	comment.Content = strings.TrimSpace(comment.Content)
	if comment.Content == "" {
		return domain.ErrContentRequired
	}
	if utf8.RuneCountInString(comment.Content) > domain.MaxCommentContentLength {
		return domain.ErrContentTooLong
	}

	ownerID, err := s.postRepo.OwnerOf(ctx, comment.PostID)
	if err != nil {
		return err
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return err
	}

	s.publish(ctx, &messaging.InteractionEvent{
		Kind:        messaging.KindPostCommented,
		PostID:      comment.PostID,
		PostOwnerID: ownerID,
		ActorID:     comment.UserID,
	})
	return nil
}

func (s *PostService) ListComments(ctx context.Context, postID string, page, limit int) (*domain.CommentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.commentRepo.ListByPost(ctx, postID, page, limit)
}

// RewardPost records a small token of appreciation on a post
func (s *PostService) RewardPost(ctx context.Context, postID, userID string) error {
	ownerID, err := s.postRepo.OwnerOf(ctx, postID)
	if err != nil {
		return err
	}

	if err := s.postRepo.AddReward(ctx, postID); err != nil {
		return err
	}

	s.publish(ctx, &messaging.InteractionEvent{
		Kind:        messaging.KindPostRewarded,
		PostID:      postID,
		PostOwnerID: ownerID,
		ActorID:     userID,
	})
	return nil
}

func (s *PostService) publish(ctx context.Context, event *messaging.InteractionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInteraction(ctx, event); err != nil {
		observability.FromContext(ctx).Warn("failed to publish interaction event",
			slog.String("kind", event.Kind),
			slog.String("post_id", event.PostID),
			slog.String("error", err.Error()))
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"littlejoys/internal/domain"
	"littlejoys/internal/middleware"
	"littlejoys/internal/service"
)

// PostHandler handles journal post endpoints
type PostHandler struct {
	postService *service.PostService
	feed        FeedBroadcaster
}

// FeedBroadcaster pushes newly published posts to live feed subscribers
type FeedBroadcaster interface {
	BroadcastPost(post *domain.Post)
}

// NewPostHandler creates a new post handler
func NewPostHandler(postService *service.PostService, feed FeedBroadcaster) *PostHandler {
	return &PostHandler{
		postService: postService,
		feed:        feed,
	}
}

// CreatePostRequest represents post creation request
type CreatePostRequest struct {
	Content      string          `json:"content"`
	ImageURL     string          `json:"image_url"`
	AudioURL     string          `json:"audio_url"`
	LocationData json.RawMessage `json:"location_data"`
	WeatherData  json.RawMessage `json:"weather_data"`
}

// AddCommentRequest represents comment creation request
type AddCommentRequest struct {
	Content string `json:"content"`
}

// LikeResponse reports the state of a like toggle
type LikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// Create publishes a new journal entry
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	post := &domain.Post{
		UserID:       userID,
		Content:      req.Content,
		ImageURL:     req.ImageURL,
		AudioURL:     req.AudioURL,
		LocationData: req.LocationData,
		WeatherData:  req.WeatherData,
	}

	if err := h.postService.CreatePost(r.Context(), post); err != nil {
		if errors.Is(err, domain.ErrContentRequired) || errors.Is(err, domain.ErrContentTooLong) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create post")
		return
	}

	if h.feed != nil {
		h.feed.BroadcastPost(post)
	}

	writeSuccess(w, http.StatusCreated, post, "Post published")
}

// List retrieves a page of posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserID(r.Context())

	opts := domain.PostListOptions{
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 0),
		SortType: r.URL.Query().Get("sort_type"),
		UserID:   r.URL.Query().Get("user_id"),
		ViewerID: viewerID,
	}

	page, err := h.postService.ListPosts(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve posts")
		return
	}

	writeSuccess(w, http.StatusOK, page, "")
}

// Get retrieves a single post
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserID(r.Context())

	postID := chi.URLParam(r, "id")
	post, err := h.postService.GetPost(r.Context(), postID, viewerID)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to retrieve post")
		return
	}

	writeSuccess(w, http.StatusOK, post, "")
}

// Delete hides the authenticated user's own post
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	postID := chi.URLParam(r, "id")
	if err := h.postService.DeletePost(r.Context(), postID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrPostNotFound):
			writeError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, domain.ErrNotPostOwner):
			writeError(w, http.StatusForbidden, "You can only delete your own posts")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete post")
		}
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Post deleted")
}

// ToggleLike flips the authenticated user's like on a post
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	postID := chi.URLParam(r, "id")
	liked, count, err := h.postService.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to toggle like")
		return
	}

	writeSuccess(w, http.StatusOK, LikeResponse{Liked: liked, LikesCount: count}, "")
}

// ListComments retrieves a page of comments on a post
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	page, err := h.postService.ListComments(r.Context(), postID,
		queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve comments")
		return
	}

	writeSuccess(w, http.StatusOK, page, "")
}

// AddComment attaches a comment to a post
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment := &domain.Comment{
		PostID:  chi.URLParam(r, "id"),
		UserID:  userID,
		Content: req.Content,
	}

	if err := h.postService.AddComment(r.Context(), comment); err != nil {
		switch {
		case errors.Is(err, domain.ErrContentRequired), errors.Is(err, domain.ErrContentTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrPostNotFound):
			writeError(w, http.StatusNotFound, "Post not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to add comment")
		}
		return
	}

	writeSuccess(w, http.StatusCreated, comment, "Comment added")
}

// Reward records a token of appreciation on a post
func (h *PostHandler) Reward(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	postID := chi.URLParam(r, "id")
	if err := h.postService.RewardPost(r.Context(), postID, userID); err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to reward post")
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Reward sent")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

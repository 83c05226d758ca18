package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joshua-takyi/gigbay/internal/models"
)

const (
	FeedFolder      = "feed"
	maxMediaPerPost = 4
)

// MediaUploader stores a file and returns where it can be fetched from.
type MediaUploader interface {
	Upload(ctx context.Context, file io.Reader, filename, folder string) (models.Media, error)
}

type FeedService struct {
	base
	feed  models.FeedRepo
	media MediaUploader
}

func NewFeedService(feed models.FeedRepo, media MediaUploader, logger *slog.Logger) *FeedService {
	return &FeedService{
		base:  newBase(nil, nil, logger),
		feed:  feed,
		media: media,
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", id, models.ErrInvalidInput)
	}
	return oid, nil
}

func (fs *FeedService) UploadMedia(ctx context.Context, actor Actor, file io.Reader, filename string) (models.Media, error) {
	if err := requireActive(actor); err != nil {
		return models.Media{}, err
	}
	if fs.media == nil {
		return models.Media{}, fmt.Errorf("media uploads are not configured: %w", models.ErrUnavailable)
	}
	return fs.media.Upload(ctx, file, filename, FeedFolder)
}

func (fs *FeedService) CreatePost(ctx context.Context, actor Actor, body string, media []models.Media) (*models.Post, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if len(media) > maxMediaPerPost {
		return nil, fmt.Errorf("a post can carry at most %d media items: %w", maxMediaPerPost, models.ErrInvalidInput)
	}

	now := fs.now()
	post := &models.Post{
		AuthorID:  actor.ID.String(),
		Body:      strings.TrimSpace(body),
		Media:     media,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := models.Validate.Struct(post); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	return fs.feed.CreatePost(ctx, post)
}

func (fs *FeedService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return fs.feed.GetPost(ctx, oid)
}

// ListPosts returns the newest posts first, optionally for one author.
func (fs *FeedService) ListPosts(ctx context.Context, authorID string, offset, limit int) ([]*models.Post, int64, error) {
	offset, limit = clampPage(offset, limit)
	return fs.feed.ListPosts(ctx, authorID, offset, limit)
}

func (fs *FeedService) ownPost(ctx context.Context, actor Actor, id string, allowStaff bool) (*models.Post, error) {
	post, err := fs.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID.String() && !(allowStaff && actor.IsStaff()) {
		return nil, fmt.Errorf("only the author can change this post: %w", models.ErrForbidden)
	}
	return post, nil
}

func (fs *FeedService) UpdatePost(ctx context.Context, actor Actor, id, body string) (*models.Post, error) {
	body = strings.TrimSpace(body)
	if err := models.Validate.Var(body, "required,max=2000"); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	post, err := fs.ownPost(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	return fs.feed.UpdatePost(ctx, post.ID, body, fs.now())
}

func (fs *FeedService) DeletePost(ctx context.Context, actor Actor, id string) error {
	post, err := fs.ownPost(ctx, actor, id, true)
	if err != nil {
		return err
	}
	return fs.feed.DeletePost(ctx, post.ID)
}

// Like is idempotent; it reports whether a new like was recorded.
func (fs *FeedService) Like(ctx context.Context, actor Actor, postID string) (bool, error) {
	post, err := fs.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	return fs.feed.LikePost(ctx, post.ID, actor.ID.String(), fs.now())
}

func (fs *FeedService) Unlike(ctx context.Context, actor Actor, postID string) (bool, error) {
	oid, err := objectID(postID)
	if err != nil {
		return false, err
	}
	return fs.feed.UnlikePost(ctx, oid, actor.ID.String())
}

func (fs *FeedService) AddComment(ctx context.Context, actor Actor, postID, body string) (*models.Comment, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	post, err := fs.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{
		PostID:    post.ID,
		AuthorID:  actor.ID.String(),
		Body:      strings.TrimSpace(body),
		CreatedAt: fs.now(),
	}
	if err := models.Validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	return fs.feed.AddComment(ctx, c)
}

func (fs *FeedService) ListComments(ctx context.Context, postID string, offset, limit int) ([]*models.Comment, int64, error) {
	oid, err := objectID(postID)
	if err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return fs.feed.ListComments(ctx, oid, offset, limit)
}

// DeleteComment is open to the comment's author, the post's author and staff.
func (fs *FeedService) DeleteComment(ctx context.Context, actor Actor, commentID string) error {
	oid, err := objectID(commentID)
	if err != nil {
		return err
	}
	c, err := fs.feed.GetComment(ctx, oid)
	if err != nil {
		return err
	}

	me := actor.ID.String()
	if c.AuthorID != me && !actor.IsStaff() {
		post, err := fs.feed.GetPost(ctx, c.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != me {
			return fmt.Errorf("cannot delete someone else's comment: %w", models.ErrForbidden)
		}
	}
	return fs.feed.DeleteComment(ctx, c)
}

package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joshua-takyi/gigbay/internal/models"
)

type mockFeedRepo struct{ mock.Mock }

func (m *mockFeedRepo) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	args := m.Called(ctx, post)
	p, _ := args.Get(0).(*models.Post)
	return p, args.Error(1)
}

func (m *mockFeedRepo) GetPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Post)
	return p, args.Error(1)
}

func (m *mockFeedRepo) ListPosts(ctx context.Context, authorID string, offset, limit int) ([]*models.Post, int64, error) {
	args := m.Called(ctx, authorID, offset, limit)
	rows, _ := args.Get(0).([]*models.Post)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *mockFeedRepo) UpdatePost(ctx context.Context, id primitive.ObjectID, body string, at time.Time) (*models.Post, error) {
	args := m.Called(ctx, id, body, at)
	p, _ := args.Get(0).(*models.Post)
	return p, args.Error(1)
}

func (m *mockFeedRepo) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFeedRepo) LikePost(ctx context.Context, postID primitive.ObjectID, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, postID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockFeedRepo) UnlikePost(ctx context.Context, postID primitive.ObjectID, userID string) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFeedRepo) AddComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(*models.Comment)
	return out, args.Error(1)
}

func (m *mockFeedRepo) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Comment)
	return c, args.Error(1)
}

func (m *mockFeedRepo) ListComments(ctx context.Context, postID primitive.ObjectID, offset, limit int) ([]*models.Comment, int64, error) {
	args := m.Called(ctx, postID, offset, limit)
	rows, _ := args.Get(0).([]*models.Comment)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *mockFeedRepo) DeleteComment(ctx context.Context, c *models.Comment) error {
	return m.Called(ctx, c).Error(0)
}

type stubUploader struct {
	folder string
	err    error
}

func (s *stubUploader) Upload(_ context.Context, _ io.Reader, filename, folder string) (models.Media, error) {
	s.folder = folder
	if s.err != nil {
		return models.Media{}, s.err
	}
	return models.Media{URL: "https://cdn.example.com/" + folder + "/" + filename, PublicID: folder + "/" + filename, Type: "image"}, nil
}

func newFeedService(repo *mockFeedRepo, media MediaUploader) *FeedService {
	svc := NewFeedService(repo, media, quietLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestCreatePostTrimsAndStamps(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	author := Actor{ID: uuid.New(), Role: models.RoleMusician}

	repo.On("CreatePost", mock.Anything, mock.MatchedBy(func(p *models.Post) bool {
		return p.Body == "gig tonight" && p.AuthorID == author.ID.String() && p.CreatedAt.Equal(fixedNow)
	})).Return(&models.Post{ID: primitive.NewObjectID(), Body: "gig tonight"}, nil)

	post, err := svc.CreatePost(context.Background(), author, "  gig tonight \n", nil)

	require.NoError(t, err)
	assert.Equal(t, "gig tonight", post.Body)
	repo.AssertExpectations(t)
}

func TestCreatePostValidation(t *testing.T) {
	svc := newFeedService(new(mockFeedRepo), nil)
	author := Actor{ID: uuid.New()}

	_, err := svc.CreatePost(context.Background(), author, "   ", nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	tooMany := make([]models.Media, maxMediaPerPost+1)
	_, err = svc.CreatePost(context.Background(), author, "photos", tooMany)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.CreatePost(context.Background(), Actor{ID: uuid.New(), Suspended: true}, "hello", nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCreatePostMediaOnly(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	repo.On("CreatePost", mock.Anything, mock.Anything).Return(&models.Post{}, nil)

	_, err := svc.CreatePost(context.Background(), Actor{ID: uuid.New()}, "", []models.Media{{URL: "https://cdn.example.com/a.jpg"}})
	assert.NoError(t, err)
}

func TestUploadMedia(t *testing.T) {
	_, err := newFeedService(new(mockFeedRepo), nil).UploadMedia(context.Background(), Actor{ID: uuid.New()}, strings.NewReader("x"), "a.jpg")
	assert.ErrorIs(t, err, models.ErrUnavailable)

	up := &stubUploader{}
	media, err := newFeedService(new(mockFeedRepo), up).UploadMedia(context.Background(), Actor{ID: uuid.New()}, strings.NewReader("x"), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, FeedFolder, up.folder)
	assert.Contains(t, media.URL, "a.jpg")
}

func TestGetPostRejectsBadID(t *testing.T) {
	_, err := newFeedService(new(mockFeedRepo), nil).GetPost(context.Background(), "not-an-object-id")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestUpdatePostOnlyAuthor(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	author := uuid.New()
	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: author.String(), Body: "old"}
	repo.On("GetPost", mock.Anything, post.ID).Return(post, nil)

	_, err := svc.UpdatePost(context.Background(), Actor{ID: uuid.New(), IsAdmin: true}, post.ID.Hex(), "new")
	assert.ErrorIs(t, err, models.ErrForbidden)

	updated := *post
	updated.Body = "new"
	repo.On("UpdatePost", mock.Anything, post.ID, "new", fixedNow).Return(&updated, nil)

	got, err := svc.UpdatePost(context.Background(), Actor{ID: author}, post.ID.Hex(), " new ")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Body)
}

func TestDeletePostAllowsStaff(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: uuid.New().String()}
	repo.On("GetPost", mock.Anything, post.ID).Return(post, nil)
	repo.On("DeletePost", mock.Anything, post.ID).Return(nil).Once()

	err := svc.DeletePost(context.Background(), Actor{ID: uuid.New()}, post.ID.Hex())
	assert.ErrorIs(t, err, models.ErrForbidden)

	err = svc.DeletePost(context.Background(), Actor{ID: uuid.New(), IsSupport: true}, post.ID.Hex())
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLikeMissingPost(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	id := primitive.NewObjectID()
	repo.On("GetPost", mock.Anything, id).Return(nil, models.ErrNotFound)

	_, err := svc.Like(context.Background(), Actor{ID: uuid.New()}, id.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
	repo.AssertNotCalled(t, "LikePost", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteComment(t *testing.T) {
	postAuthor, commenter, stranger := uuid.New(), uuid.New(), uuid.New()
	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: postAuthor.String()}
	comment := &models.Comment{ID: primitive.NewObjectID(), PostID: post.ID, AuthorID: commenter.String()}

	cases := []struct {
		name  string
		actor Actor
		want  error
	}{
		{"comment author", Actor{ID: commenter}, nil},
		{"post author", Actor{ID: postAuthor}, nil},
		{"staff", Actor{ID: stranger, IsAdmin: true}, nil},
		{"stranger", Actor{ID: stranger}, models.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockFeedRepo)
			svc := newFeedService(repo, nil)
			repo.On("GetComment", mock.Anything, comment.ID).Return(comment, nil)
			repo.On("GetPost", mock.Anything, post.ID).Return(post, nil).Maybe()
			repo.On("DeleteComment", mock.Anything, comment).Return(nil).Maybe()

			err := svc.DeleteComment(context.Background(), tc.actor, comment.ID.Hex())
			if tc.want == nil {
				assert.NoError(t, err)
				repo.AssertCalled(t, "DeleteComment", mock.Anything, comment)
				return
			}
			assert.True(t, errors.Is(err, tc.want), err)
			repo.AssertNotCalled(t, "DeleteComment", mock.Anything, mock.Anything)
		})
	}
}

func TestListCommentsClampsPage(t *testing.T) {
	repo := new(mockFeedRepo)
	svc := newFeedService(repo, nil)
	id := primitive.NewObjectID()
	want, wantLimit := clampPage(-5, 10000)
	repo.On("ListComments", mock.Anything, id, want, wantLimit).Return([]*models.Comment{}, int64(0), nil)

	_, total, err := svc.ListComments(context.Background(), id.Hex(), -5, 10000)
	require.NoError(t, err)
	assert.Zero(t, total)
	repo.AssertExpectations(t)
}

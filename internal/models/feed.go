package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PostsColName    = "posts"
	LikesColName    = "post_likes"
	CommentsColName = "post_comments"
)

type Media struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"public_id" json:"public_id"`
	Type     string `bson:"type" json:"type"`
}

type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID     string             `bson:"author_id" json:"author_id"`
	Body         string             `bson:"body" json:"body" validate:"required_without=Media,max=2000"`
	Media        []Media            `bson:"media,omitempty" json:"media,omitempty"`
	LikeCount    int64              `bson:"like_count" json:"like_count"`
	CommentCount int64              `bson:"comment_count" json:"comment_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type Like struct {
	PostID  primitive.ObjectID `bson:"post_id" json:"post_id"`
	UserID  string             `bson:"user_id" json:"user_id"`
	LikedAt time.Time          `bson:"liked_at" json:"liked_at"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"post_id"`
	AuthorID  string             `bson:"author_id" json:"author_id"`
	Body      string             `bson:"body" json:"body" validate:"required,min=1,max=1000"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type FeedRepo interface {
	CreatePost(ctx context.Context, post *Post) (*Post, error)
	GetPost(ctx context.Context, id primitive.ObjectID) (*Post, error)
	ListPosts(ctx context.Context, authorID string, offset, limit int) ([]*Post, int64, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, body string, at time.Time) (*Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	LikePost(ctx context.Context, postID primitive.ObjectID, userID string, at time.Time) (bool, error)
	UnlikePost(ctx context.Context, postID primitive.ObjectID, userID string) (bool, error)
	AddComment(ctx context.Context, c *Comment) (*Comment, error)
	GetComment(ctx context.Context, id primitive.ObjectID) (*Comment, error)
	ListComments(ctx context.Context, postID primitive.ObjectID, offset, limit int) ([]*Comment, int64, error)
	DeleteComment(ctx context.Context, c *Comment) error
}

func (mdb *MongodbRepo) ensureFeedIndexes(ctx context.Context) error {
	posts, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return err
	}
	if _, err := posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("author_created_at_idx"),
	}); err != nil {
		return fmt.Errorf("error creating post indexes: %w", err)
	}

	likes, err := mdb.GetCollection(LikesColName)
	if err != nil {
		return err
	}
	// one like per user per post; LikePost relies on it
	if _, err := likes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("post_user_unique"),
	}); err != nil {
		return fmt.Errorf("error creating like indexes: %w", err)
	}

	comments, err := mdb.GetCollection(CommentsColName)
	if err != nil {
		return err
	}
	if _, err := comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("post_created_at_idx"),
	}); err != nil {
		return fmt.Errorf("error creating comment indexes: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) CreatePost(ctx context.Context, post *Post) (*Post, error) {
	col, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return nil, err
	}
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, post); err != nil {
		return nil, fmt.Errorf("error inserting post: %w", err)
	}
	return post, nil
}

func (mdb *MongodbRepo) GetPost(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	col, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return nil, err
	}
	var post Post
	err = col.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("post: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error finding post: %w", err)
	}
	return &post, nil
}

func (mdb *MongodbRepo) ListPosts(ctx context.Context, authorID string, offset, limit int) ([]*Post, int64, error) {
	col, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.M{}
	if authorID != "" {
		filter["author_id"] = authorID
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting posts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("error decoding posts: %w", err)
	}
	return posts, total, nil
}

func (mdb *MongodbRepo) UpdatePost(ctx context.Context, id primitive.ObjectID, body string, at time.Time) (*Post, error) {
	col, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post Post
	err = col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"body": body, "updated_at": at}},
		opts,
	).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("post: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	return &post, nil
}

// DeletePost removes the post with its likes and comments.
func (mdb *MongodbRepo) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("post: %w", ErrNotFound)
	}

	for _, name := range []string{LikesColName, CommentsColName} {
		c, err := mdb.GetCollection(name)
		if err != nil {
			return err
		}
		if _, err := c.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
			return fmt.Errorf("error deleting %s: %w", name, err)
		}
	}
	return nil
}

// LikePost is idempotent: liking twice keeps one like and one count. It
// reports whether a new like was recorded.
func (mdb *MongodbRepo) LikePost(ctx context.Context, postID primitive.ObjectID, userID string, at time.Time) (bool, error) {
	likes, err := mdb.GetCollection(LikesColName)
	if err != nil {
		return false, err
	}

	res, err := likes.UpdateOne(ctx,
		bson.M{"post_id": postID, "user_id": userID},
		bson.M{"$setOnInsert": Like{PostID: postID, UserID: userID, LikedAt: at}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("error upserting like: %w", err)
	}
	if res.UpsertedCount == 0 {
		return false, nil
	}
	return true, mdb.bumpPostCounter(ctx, postID, "like_count", 1)
}

func (mdb *MongodbRepo) UnlikePost(ctx context.Context, postID primitive.ObjectID, userID string) (bool, error) {
	likes, err := mdb.GetCollection(LikesColName)
	if err != nil {
		return false, err
	}
	res, err := likes.DeleteOne(ctx, bson.M{"post_id": postID, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("error deleting like: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	return true, mdb.bumpPostCounter(ctx, postID, "like_count", -1)
}

func (mdb *MongodbRepo) bumpPostCounter(ctx context.Context, postID primitive.ObjectID, field string, by int64) error {
	posts, err := mdb.GetCollection(PostsColName)
	if err != nil {
		return err
	}
	if _, err := posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$inc": bson.M{field: by}}); err != nil {
		return fmt.Errorf("error updating %s: %w", field, err)
	}
	return nil
}

func (mdb *MongodbRepo) AddComment(ctx context.Context, c *Comment) (*Comment, error) {
	col, err := mdb.GetCollection(CommentsColName)
	if err != nil {
		return nil, err
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, c); err != nil {
		return nil, fmt.Errorf("error inserting comment: %w", err)
	}
	return c, mdb.bumpPostCounter(ctx, c.PostID, "comment_count", 1)
}

func (mdb *MongodbRepo) GetComment(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	col, err := mdb.GetCollection(CommentsColName)
	if err != nil {
		return nil, err
	}
	var c Comment
	err = col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("comment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error finding comment: %w", err)
	}
	return &c, nil
}

func (mdb *MongodbRepo) ListComments(ctx context.Context, postID primitive.ObjectID, offset, limit int) ([]*Comment, int64, error) {
	col, err := mdb.GetCollection(CommentsColName)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.M{"post_id": postID}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting comments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := []*Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, 0, fmt.Errorf("error decoding comments: %w", err)
	}
	return comments, total, nil
}

func (mdb *MongodbRepo) DeleteComment(ctx context.Context, c *Comment) error {
	col, err := mdb.GetCollection(CommentsColName)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": c.ID})
	if err != nil {
		return fmt.Errorf("error deleting comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("comment: %w", ErrNotFound)
	}
	return mdb.bumpPostCounter(ctx, c.PostID, "comment_count", -1)
}

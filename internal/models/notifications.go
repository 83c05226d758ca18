package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	NotificationsColName = "notifications"
	NotificationTTL      = 30 * 24 * time.Hour
)

// Notification is one entry in a user's in-app inbox. Silent entries were
// written during quiet hours and must not trigger a push on the client.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Category  Category           `bson:"category" json:"category"`
	Type      string             `bson:"type" json:"type"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	Data      map[string]string  `bson:"data,omitempty" json:"data,omitempty"`
	Silent    bool               `bson:"silent" json:"silent"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"-"`
}

type NotificationRepo interface {
	EnsureIndexes(ctx context.Context) error
	InsertNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*Notification, int64, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []primitive.ObjectID) (int64, error)
}

// EnsureIndexes creates the inbox TTL index and the feed indexes.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(NotificationsColName)
	if err != nil {
		return err
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_at_idx"),
		},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating notification indexes: %w", err)
	}

	return mdb.ensureFeedIndexes(ctx)
}

func (mdb *MongodbRepo) InsertNotification(ctx context.Context, n *Notification) error {
	col, err := mdb.GetCollection(NotificationsColName)
	if err != nil {
		return err
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.ExpiresAt = n.CreatedAt.Add(NotificationTTL)

	if _, err := col.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("error inserting notification: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*Notification, int64, error) {
	col, err := mdb.GetCollection(NotificationsColName)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("error decoding notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkNotificationsRead marks the given entries read, or the whole inbox
// when ids is empty.
func (mdb *MongodbRepo) MarkNotificationsRead(ctx context.Context, userID string, ids []primitive.ObjectID) (int64, error) {
	col, err := mdb.GetCollection(NotificationsColName)
	if err != nil {
		return 0, err
	}

	filter := bson.M{"user_id": userID, "read": false}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}

	res, err := col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

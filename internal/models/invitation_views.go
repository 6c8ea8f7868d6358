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
	InvitationViewsColName = "invitation_views"
	invitationViewTTL      = 90 * 24 * time.Hour
	invitationViewWindow   = time.Hour
)

type InvitationView struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID   string             `bson:"event_id" json:"event_id" validate:"required"`
	GuestID   string             `bson:"guest_id" json:"guest_id" validate:"required"`
	Origin    string             `bson:"origin,omitempty" json:"origin,omitempty"`
	UserAgent string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	ViewedAt  time.Time          `bson:"viewed_at" json:"viewed_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}

type InvitationViewStats struct {
	EventID       string `json:"event_id"`
	TotalViews    int64  `json:"total_views"`
	UniqueGuests  int64  `json:"unique_guests"`
	ViewsToday    int64  `json:"views_today"`
	ViewsThisWeek int64  `json:"views_this_week"`
}

type InvitationViewsRepo interface {
	TrackInvitationView(ctx context.Context, view *InvitationView) error
	GetInvitationViewStats(ctx context.Context, eventId string) (*InvitationViewStats, error)
	EnsureIndexes(ctx context.Context) error
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the TTL and lookup indexes for invitation views.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, InvitationViewsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
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
				{Key: "event_id", Value: 1},
				{Key: "viewed_at", Value: -1},
			},
			Options: options.Index().SetName("event_viewed_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "guest_id", Value: 1},
			},
			Options: options.Index().SetName("event_guest_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating indexes: %v", err)
	}
	return nil
}

// TrackInvitationView records a view unless the same guest already opened the
// invitation within the last hour.
func (mdb *MongodbRepo) TrackInvitationView(ctx context.Context, view *InvitationView) error {
	if err := Validate.Struct(view); err != nil {
		return fmt.Errorf("invalid invitation view: %w", err)
	}

	col, err := mdb.GetCollection(ctx, InvitationViewsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	now := time.Now()
	var recent InvitationView
	err = col.FindOne(ctx, bson.M{
		"event_id":  view.EventID,
		"guest_id":  view.GuestID,
		"viewed_at": bson.M{"$gte": now.Add(-invitationViewWindow)},
	}).Decode(&recent)
	if err == nil {
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return fmt.Errorf("error checking recent views: %v", err)
	}

	view.ViewedAt = now
	view.ExpiresAt = now.Add(invitationViewTTL)
	if view.ID.IsZero() {
		view.ID = primitive.NewObjectID()
	}

	if _, err := col.InsertOne(ctx, view); err != nil {
		return fmt.Errorf("error inserting invitation view: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetInvitationViewStats(ctx context.Context, eventId string) (*InvitationViewStats, error) {
	col, err := mdb.GetCollection(ctx, InvitationViewsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	stats := &InvitationViewStats{EventID: eventId}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))

	if stats.TotalViews, err = col.CountDocuments(ctx, bson.M{"event_id": eventId}); err != nil {
		return nil, fmt.Errorf("error counting total views: %v", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventId}}},
		{{Key: "$group", Value: bson.M{"_id": "$guest_id"}}},
		{{Key: "$count", Value: "unique_guests"}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating unique guests: %v", err)
	}
	defer cursor.Close(ctx)

	var unique []bson.M
	if err := cursor.All(ctx, &unique); err != nil {
		return nil, fmt.Errorf("error decoding unique guests: %v", err)
	}
	if len(unique) > 0 {
		switch count := unique[0]["unique_guests"].(type) {
		case int32:
			stats.UniqueGuests = int64(count)
		case int64:
			stats.UniqueGuests = count
		}
	}

	if stats.ViewsToday, err = col.CountDocuments(ctx, bson.M{
		"event_id":  eventId,
		"viewed_at": bson.M{"$gte": startOfDay},
	}); err != nil {
		return nil, fmt.Errorf("error counting today's views: %v", err)
	}

	if stats.ViewsThisWeek, err = col.CountDocuments(ctx, bson.M{
		"event_id":  eventId,
		"viewed_at": bson.M{"$gte": startOfWeek},
	}); err != nil {
		return nil, fmt.Errorf("error counting this week's views: %v", err)
	}

	return stats, nil
}

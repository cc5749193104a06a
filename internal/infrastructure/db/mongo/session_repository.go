package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

const sessionCollection = "client_sessions"

// SessionRepository keeps the persisted session as one document per storage
// key, so several agents sharing a database each keep their own session.
type SessionRepository struct {
	coll *mongo.Collection
	key  string
}

func NewSessionRepository(db *mongo.Database, storageKey string) *SessionRepository {
	return &SessionRepository{coll: db.Collection(sessionCollection), key: storageKey}
}

type mongoSession struct {
	Key       string    `bson:"_id"`
	User      mongoUser `bson:"user"`
	Token     string    `bson:"token"`
	ExpiresAt int64     `bson:"expires_at,omitempty"`
	SavedAt   int64     `bson:"saved_at"`
}

type mongoUser struct {
	ID       string  `bson:"id"`
	FullName string  `bson:"full_name"`
	Email    string  `bson:"email"`
	NIF      string  `bson:"nif"`
	UserType string  `bson:"user_type"`
	Balance  float64 `bson:"balance"`
	IsActive bool    `bson:"is_active"`
}

func (r *SessionRepository) Load(ctx context.Context) (*domain.PersistedSession, error) {
	var doc mongoSession
	if err := r.coll.FindOne(ctx, bson.M{"_id": r.key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &domain.PersistedSession{
		User: domain.User{
			ID:       doc.User.ID,
			FullName: doc.User.FullName,
			Email:    doc.User.Email,
			NIF:      doc.User.NIF,
			UserType: domain.UserType(doc.User.UserType),
			Balance:  doc.User.Balance,
			IsActive: doc.User.IsActive,
		},
		Token:     doc.Token,
		ExpiresAt: unixToTime(doc.ExpiresAt),
		SavedAt:   unixToTime(doc.SavedAt),
	}, nil
}

// Save upserts the session document.
func (r *SessionRepository) Save(ctx context.Context, s domain.PersistedSession) error {
	doc := mongoSession{
		Key: r.key,
		User: mongoUser{
			ID:       s.User.ID,
			FullName: s.User.FullName,
			Email:    s.User.Email,
			NIF:      s.User.NIF,
			UserType: string(s.User.UserType),
			Balance:  s.User.Balance,
			IsActive: s.User.IsActive,
		},
		Token:     s.Token,
		ExpiresAt: timeToUnix(s.ExpiresAt),
		SavedAt:   timeToUnix(s.SavedAt),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": r.key}, doc, opts); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": r.key}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

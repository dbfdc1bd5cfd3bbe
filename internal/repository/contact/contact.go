package contact

import (
	"context"
	"errors"
	"time"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	ContactRepo struct {
		collection *mongo.Collection
	}

	// Contact is the stored form of an address's published V1 bundle.
	Contact struct {
		Address   string    `bson:"address"`
		Bundle    []byte    `bson:"bundle"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
)

func NewContactRepo(db *mongo.Database) *ContactRepo {
	return &ContactRepo{
		collection: db.Collection("contacts"),
	}
}

// GetContact returns (nil, nil) for an unknown address.
func (r *ContactRepo) GetContact(ctx context.Context, address string) (*model.PublicKeyBundle, error) {
	filter := bson.M{
		"address": address,
	}

	var c Contact
	err := r.collection.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return wire.UnmarshalPublicKeyBundle(c.Bundle)
}

// PutContact replaces the bundle stored for address.
func (r *ContactRepo) PutContact(ctx context.Context, address string, bundle *model.PublicKeyBundle) error {
	filter := bson.M{
		"address": address,
	}
	update := bson.M{
		"$set": Contact{
			Address:   address,
			Bundle:    wire.MarshalPublicKeyBundle(bundle),
			UpdatedAt: time.Now().UTC(),
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Package account persists a client's private key bundle by account name.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/wire"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type (
	AccountRepo struct {
		collection *mongo.Collection
	}

	Account struct {
		ID      primitive.ObjectID `bson:"_id,omitempty"`
		Name    string             `bson:"name"`
		Address string             `bson:"address"`

		IdentityPriv   []byte `bson:"identity_priv"`
		IdentitySigned []byte `bson:"identity_signed"`
		IdentityLegacy []byte `bson:"identity_legacy"`
		PreKeyPriv     []byte `bson:"pre_key_priv"`
		PreKeySigned   []byte `bson:"pre_key_signed"`
		PreKeyLegacy   []byte `bson:"pre_key_legacy"`

		CreatedAt time.Time `bson:"created_at"`
	}
)

func NewAccountRepo(db *mongo.Database) *AccountRepo {
	return &AccountRepo{
		collection: db.Collection("accounts"),
	}
}

func (r *AccountRepo) GetByName(ctx context.Context, name string) (*Account, error) {
	filter := bson.M{
		"name": name,
	}

	var a Account
	err := r.collection.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *Account) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id := res.InsertedID.(primitive.ObjectID)
	a.ID = id
	return id, nil
}

// FromBundle captures everything needed to restore b.
func FromBundle(name string, b *keys.PrivateKeyBundle) *Account {
	return &Account{
		Name:           name,
		Address:        b.Address,
		IdentityPriv:   b.IdentityKey.Secret.Serialize(),
		IdentitySigned: wire.MarshalSignedPublicKey(b.IdentityKey.Public),
		IdentityLegacy: wire.MarshalPublicKey(b.IdentityKey.Legacy),
		PreKeyPriv:     b.PreKey.Secret.Serialize(),
		PreKeySigned:   wire.MarshalSignedPublicKey(b.PreKey.Public),
		PreKeyLegacy:   wire.MarshalPublicKey(b.PreKey.Legacy),
		CreatedAt:      b.IdentityKey.CreatedAt,
	}
}

// Bundle restores the private key bundle.
func (a *Account) Bundle() (*keys.PrivateKeyBundle, error) {
	identity, err := restoreKey(a.IdentityPriv, a.IdentitySigned, a.IdentityLegacy, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("identity key: %w", err)
	}
	preKey, err := restoreKey(a.PreKeyPriv, a.PreKeySigned, a.PreKeyLegacy, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("pre key: %w", err)
	}
	return &keys.PrivateKeyBundle{
		Address:     a.Address,
		IdentityKey: identity,
		PreKey:      preKey,
	}, nil
}

func restoreKey(secret, signed, legacy []byte, createdAt time.Time) (*keys.PrivateKey, error) {
	if len(secret) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid secret length %d", len(secret))
	}
	pub, err := wire.UnmarshalSignedPublicKey(signed)
	if err != nil {
		return nil, err
	}
	leg, err := wire.UnmarshalPublicKey(legacy)
	if err != nil {
		return nil, err
	}
	return &keys.PrivateKey{
		Secret:    secp256k1.PrivKeyFromBytes(secret),
		CreatedAt: createdAt,
		Public:    pub,
		Legacy:    leg,
	}, nil
}

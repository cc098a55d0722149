// Package repository provides document-store access for users and client
// applications.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/juanmaabanto/ms-identity/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository      = (*MongoUserRepo)(nil)
	_ ClientAppRepository = (*MongoClientAppRepo)(nil)
)

// UserRepository exposes the user-record store operations the services need.
// Not-found is reported as mongo.ErrNoDocuments wrapped in context.
type UserRepository interface {
	FindByNormalizedUserName(ctx context.Context, normalized string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	// FindSecurityInfoByID reads only the fields needed for session
	// revalidation: id, userName and securityStamp.
	FindSecurityInfoByID(ctx context.Context, id string) (domain.User, error)
	InsertOne(ctx context.Context, user domain.User) (domain.User, error)
	// UpdateLoginState merges the lockout counters into the stored record.
	UpdateLoginState(ctx context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error
}

// ClientAppRepository looks up registered client applications.
type ClientAppRepository interface {
	FindByID(ctx context.Context, id string) (domain.ClientApp, error)
}

// MongoUserRepo implements UserRepository on the "user" collection.
type MongoUserRepo struct {
	col *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{col: db.Collection("user")}
}

func (r *MongoUserRepo) FindByNormalizedUserName(ctx context.Context, normalized string) (domain.User, error) {
	var user domain.User
	err := r.col.FindOne(ctx, bson.M{"normalizedUserName": normalized}).Decode(&user)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by name: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by id: %w", mongo.ErrNoDocuments)
	}

	var user domain.User
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepo) FindSecurityInfoByID(ctx context.Context, id string) (domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("find security info: %w", mongo.ErrNoDocuments)
	}

	projection := options.FindOne().SetProjection(bson.M{
		"_id":           1,
		"userName":      1,
		"securityStamp": 1,
	})

	var user domain.User
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}, projection).Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("find security info: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepo) InsertOne(ctx context.Context, user domain.User) (domain.User, error) {
	res, err := r.col.InsertOne(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	return user, nil
}

func (r *MongoUserRepo) UpdateLoginState(ctx context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("update login state: %w", mongo.ErrNoDocuments)
	}

	// Read-modify-write without optimistic concurrency: concurrent failed
	// attempts against the same user can undercount or race past the
	// lockout threshold. Accepted behavior, matching the store contract.
	set := bson.M{
		"accessFailedCount": accessFailedCount,
		"updatedAt":         time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if lockoutEnd != nil {
		set["lockoutEnd"] = *lockoutEnd
	} else {
		update["$unset"] = bson.M{"lockoutEnd": ""}
	}

	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("update login state: %w", err)
	}
	return nil
}

// MongoClientAppRepo implements ClientAppRepository on the "clientApp"
// collection.
type MongoClientAppRepo struct {
	col *mongo.Collection
}

func NewMongoClientAppRepo(db *mongo.Database) *MongoClientAppRepo {
	return &MongoClientAppRepo{col: db.Collection("clientApp")}
}

func (r *MongoClientAppRepo) FindByID(ctx context.Context, id string) (domain.ClientApp, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ClientApp{}, fmt.Errorf("find client app: %w", mongo.ErrNoDocuments)
	}

	var app domain.ClientApp
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&app); err != nil {
		return domain.ClientApp{}, fmt.Errorf("find client app: %w", err)
	}
	return app, nil
}

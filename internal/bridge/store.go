package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the mirrored user/session persistence contract. The production
// implementation talks to the downstream application's own MongoDB; tests
// substitute a fake.
type Store interface {
	// UpsertUser inserts or updates the mirrored user for profile and
	// reconciles the refresh-token list with seed. Returns the user id.
	UpsertUser(ctx context.Context, profile *Profile, seed string) (string, error)
	// CreateSession inserts a session shell (no token hash yet) and returns
	// its generated id.
	CreateSession(ctx context.Context, userID string, expiration time.Time) (string, error)
	// SetSessionTokenHash patches the session with the refresh-token hash.
	SetSessionTokenHash(ctx context.Context, sessionID, hash string) error
	// FindUser loads the mirrored user by email.
	FindUser(ctx context.Context, email string) (*MirroredUser, error)
}

const (
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

// MongoStore implements Store against the downstream document store.
//
// Connections are opened and closed per logical operation rather than held
// across requests, bounding resource usage under bursty login load. The
// driver's own pooling keeps the per-operation cost acceptable.
type MongoStore struct {
	uri       string
	database  string
	opTimeout time.Duration
}

// NewMongoStore builds a store for the given URI and database.
func NewMongoStore(uri, database string, opTimeout time.Duration) *MongoStore {
	return &MongoStore{uri: uri, database: database, opTimeout: opTimeout}
}

// withDatabase runs fn against a freshly connected database handle.
func (s *MongoStore) withDatabase(ctx context.Context, fn func(ctx context.Context, db *mongo.Database) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("connecting to document store: %w", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("document store disconnect failed")
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	return fn(ctx, client.Database(s.database))
}

// UpsertUser creates the mirrored user on first login and updates mutable
// fields on every later one. Immutable identifiers (_id, email, provider,
// createdAt) are never rewritten for an existing user.
func (s *MongoStore) UpsertUser(ctx context.Context, profile *Profile, seed string) (string, error) {
	var userID string
	err := s.withDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		users := db.Collection(usersCollection)
		filter := bson.M{"email": profile.Email}
		now := time.Now()
		name := profile.DisplayName()
		handle := Handle(profile.Email)

		var existing bson.M
		findErr := users.FindOne(ctx, filter).Decode(&existing)
		if findErr == mongo.ErrNoDocuments {
			doc := bson.M{
				"name":             name,
				"username":         handle,
				"email":            profile.Email,
				"emailVerified":    profile.EmailVerified,
				"avatar":           avatarOrNil(profile),
				"provider":         providerTag,
				"role":             defaultRole,
				"plugins":          []interface{}{},
				"twoFactorEnabled": false,
				"termsAccepted":    false,
				"personalization":  bson.M{},
				"backupCodes":      []interface{}{},
				"refreshToken":     TokenList{Kind: TokenListAbsent}.Reconcile(seed),
				"createdAt":        now,
				"updatedAt":        now,
				"__v":              0,
			}
			result, err := users.InsertOne(ctx, doc)
			if err != nil {
				return fmt.Errorf("inserting mirrored user: %w", err)
			}
			oid, ok := result.InsertedID.(primitive.ObjectID)
			if !ok {
				return fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
			}
			userID = oid.Hex()
			log.Info().Str("email", profile.Email).Str("user_id", userID).Msg("mirrored user created")
			return nil
		}
		if findErr != nil {
			return fmt.Errorf("looking up mirrored user: %w", findErr)
		}

		set := bson.M{
			"name":          name,
			"username":      handle,
			"emailVerified": profile.EmailVerified,
			"avatar":        avatarOrNil(profile),
			"updatedAt":     now,
		}
		if _, err := users.UpdateOne(ctx, filter, buildUserUpdate(existing, set, seed)); err != nil {
			return fmt.Errorf("updating mirrored user: %w", err)
		}
		oid, ok := existing["_id"].(primitive.ObjectID)
		if !ok {
			return fmt.Errorf("mirrored user %s has non-ObjectID _id", profile.Email)
		}
		userID = oid.Hex()
		log.Info().Str("email", profile.Email).Str("user_id", userID).Msg("mirrored user updated")
		return nil
	})
	return userID, err
}

// buildUserUpdate assembles the update document for an existing mirrored
// user. The refreshToken field drifts between absent, bare string, and array.
// When it is already an array the new token goes in with $addToSet, so two
// concurrent logins cannot drop each other's tokens; absent and scalar
// shapes must first be normalized to an array, which needs the read value.
func buildUserUpdate(existing bson.M, set bson.M, seed string) bson.M {
	update := bson.M{"$set": set}
	if seed == "" {
		return update
	}
	list := TokenListFromBSON(existing["refreshToken"])
	if list.Kind == TokenListArray {
		update["$addToSet"] = bson.M{"refreshToken": seed}
		return update
	}
	set["refreshToken"] = list.Reconcile(seed)
	return update
}

// CreateSession inserts the session shell. The refresh-token hash is patched
// in afterwards because the token embeds this session's generated id.
func (s *MongoStore) CreateSession(ctx context.Context, userID string, expiration time.Time) (string, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	var sessionID string
	err = s.withDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		now := time.Now()
		result, err := db.Collection(sessionsCollection).InsertOne(ctx, bson.M{
			"user":       userOID,
			"expiration": expiration,
			"createdAt":  now,
			"updatedAt":  now,
		})
		if err != nil {
			return fmt.Errorf("inserting mirrored session: %w", err)
		}
		oid, ok := result.InsertedID.(primitive.ObjectID)
		if !ok {
			return fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
		}
		sessionID = oid.Hex()
		return nil
	})
	return sessionID, err
}

// SetSessionTokenHash stores the SHA-256 hex of the refresh token. The raw
// token never touches the store.
func (s *MongoStore) SetSessionTokenHash(ctx context.Context, sessionID, hash string) error {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	return s.withDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(sessionsCollection).UpdateOne(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{"refreshTokenHash": hash, "updatedAt": time.Now()}},
		)
		if err != nil {
			return fmt.Errorf("patching session token hash: %w", err)
		}
		return nil
	})
}

// FindUser loads the mirrored user by email.
func (s *MongoStore) FindUser(ctx context.Context, email string) (*MirroredUser, error) {
	var user MirroredUser
	err := s.withDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		// Decode through bson.M first: legacy documents can hold refreshToken
		// shapes the struct decoder chokes on.
		var doc bson.M
		if err := db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
			return err
		}
		raw, err := bson.Marshal(pruneVolatileFields(doc))
		if err != nil {
			return err
		}
		return bson.Unmarshal(raw, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ErrUserNotFound reports a missing mirrored user.
var ErrUserNotFound = mongo.ErrNoDocuments

func avatarOrNil(p *Profile) interface{} {
	if p.AvatarURL == "" {
		return nil
	}
	return p.AvatarURL
}

// pruneVolatileFields drops the drift-prone refreshToken field before struct
// decoding; callers that need it go through TokenListFromBSON instead.
func pruneVolatileFields(doc bson.M) bson.M {
	delete(doc, "refreshToken")
	return doc
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

const (
	usersCollection        = "users"
	interactionsCollection = "interactions"
	chatsCollection        = "chats"
	messagesCollection     = "messages"
)

// MongoStore keeps one document per user, interaction, chat room and message.
type MongoStore struct {
	client       *mongo.Client
	users        *mongo.Collection
	interactions *mongo.Collection
	chats        *mongo.Collection
	messages     *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:       client,
		users:        db.Collection(usersCollection),
		interactions: db.Collection(interactionsCollection),
		chats:        db.Collection(chatsCollection),
		messages:     db.Collection(messagesCollection),
	}
}

// EnsureIndexes creates the unique keys the service relies on plus the
// indexes backing search, match checks and history pagination.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "telegram_id", Value: 1}}, Options: options.Index().SetName("uniq_telegram_id").SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("uniq_user_id").SetUnique(true)},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetName("idx_search_order")},
		},
		s.interactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "target_user_id", Value: 1}, {Key: "action", Value: 1}}, Options: options.Index().SetName("idx_actor_target_action")},
			{Keys: bson.D{{Key: "target_user_id", Value: 1}, {Key: "action", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetName("idx_target_action_time")},
		},
		s.chats: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}}, Options: options.Index().SetName("uniq_chat_id").SetUnique(true)},
			{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetName("uniq_pair_key").SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_time", Value: -1}}, Options: options.Index().SetName("idx_participants_last")},
		},
		s.messages: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "message_id", Value: 1}}, Options: options.Index().SetName("idx_chat_timestamp")},
		},
	}
	for col, idx := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return mongoErr("insert user", err)
	}
	return nil
}

func (s *MongoStore) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"telegram_id": telegramID})
}

func (s *MongoStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"user_id": userID})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mongoErr("find user", err)
	}
	return &u, nil
}

func (s *MongoStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, mongoErr("find users", err)
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, mongoErr("decode users", err)
	}
	return users, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, telegramID string, upd models.ProfileUpdate, updatedAt time.Time) error {
	set := bson.M{"updated_at": updatedAt}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Age != nil {
		set["age"] = *upd.Age
	}
	if upd.Gender != nil {
		set["gender"] = *upd.Gender
	}
	if upd.Orientation != nil {
		set["orientation"] = *upd.Orientation
	}
	if upd.InterestedIn != nil {
		set["interested_in"] = *upd.InterestedIn
	}
	if upd.RelationshipType != nil {
		set["relationship_type"] = *upd.RelationshipType
	}
	if upd.TraitTags != nil {
		set["selected_spokies"] = *upd.TraitTags
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"telegram_id": telegramID}, bson.M{"$set": set})
	if err != nil {
		return mongoErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SearchUsers(ctx context.Context, f SearchFilter) ([]models.User, error) {
	filter := bson.M{
		"telegram_id": bson.M{"$ne": f.ExcludeTelegramID},
		"is_active":   true,
	}
	if len(f.ExcludeUserIDs) > 0 {
		filter["user_id"] = bson.M{"$nin": f.ExcludeUserIDs}
	}
	if len(f.Genders) > 0 {
		filter["gender"] = bson.M{"$in": f.Genders}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "user_id", Value: 1}}).
		SetSkip(f.Skip).
		SetProjection(bson.M{
			"user_id":          1,
			"name":             1,
			"age":              1,
			"profile_photos":   1,
			"bio":              1,
			"selected_spokies": 1,
			"location":         1,
			"created_at":       1,
		})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr("search users", err)
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, mongoErr("decode candidates", err)
	}
	return users, nil
}

func (s *MongoStore) AppendInteraction(ctx context.Context, in *models.Interaction) error {
	if _, err := s.interactions.InsertOne(ctx, in); err != nil {
		return mongoErr("insert interaction", err)
	}
	return nil
}

func (s *MongoStore) InteractedTargetIDs(ctx context.Context, userID string) ([]string, error) {
	values, err := s.interactions.Distinct(ctx, "target_user_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, mongoErr("distinct targets", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MongoStore) HasInteraction(ctx context.Context, actorID, targetID string, actions []models.Action) (bool, error) {
	err := s.interactions.FindOne(ctx, bson.M{
		"user_id":        actorID,
		"target_user_id": targetID,
		"action":         bson.M{"$in": actions},
	}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, mongoErr("find reciprocal interaction", err)
	}
	return true, nil
}

func (s *MongoStore) InteractionsReceived(ctx context.Context, userID string, actions []models.Action) ([]models.Interaction, error) {
	cur, err := s.interactions.Find(ctx,
		bson.M{"target_user_id": userID, "action": bson.M{"$in": actions}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	)
	if err != nil {
		return nil, mongoErr("find received interactions", err)
	}
	out := []models.Interaction{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoErr("decode interactions", err)
	}
	return out, nil
}

func (s *MongoStore) CreateChat(ctx context.Context, c *models.ChatRoom) error {
	if _, err := s.chats.InsertOne(ctx, c); err != nil {
		return mongoErr("insert chat", err)
	}
	return nil
}

func (s *MongoStore) GetChat(ctx context.Context, chatID string) (*models.ChatRoom, error) {
	return s.findChat(ctx, bson.M{"chat_id": chatID})
}

func (s *MongoStore) GetChatByPair(ctx context.Context, pairKey string) (*models.ChatRoom, error) {
	return s.findChat(ctx, bson.M{"pair_key": pairKey})
}

func (s *MongoStore) findChat(ctx context.Context, filter bson.M) (*models.ChatRoom, error) {
	var c models.ChatRoom
	if err := s.chats.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, mongoErr("find chat", err)
	}
	return &c, nil
}

func (s *MongoStore) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	cur, err := s.chats.Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}, {Key: "chat_id", Value: 1}}),
	)
	if err != nil {
		return nil, mongoErr("find chats", err)
	}
	out := []models.ChatRoom{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoErr("decode chats", err)
	}
	return out, nil
}

func (s *MongoStore) SetLastMessage(ctx context.Context, chatID, body string, at time.Time) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": bson.M{"last_message": body, "last_message_time": at}},
	)
	if err != nil {
		return mongoErr("update chat last message", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return mongoErr("insert message", err)
	}
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context, chatID string, skip, limit int64) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "message_id", Value: 1}}).
		SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, mongoErr("find messages", err)
	}
	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoErr("decode messages", err)
	}
	return out, nil
}

func unreadFilter(chatID, readerID string) bson.M {
	return bson.M{"chat_id": chatID, "sender_id": bson.M{"$ne": readerID}, "is_read": false}
}

func (s *MongoStore) CountUnread(ctx context.Context, chatID, readerID string) (int64, error) {
	n, err := s.messages.CountDocuments(ctx, unreadFilter(chatID, readerID))
	if err != nil {
		return 0, mongoErr("count unread", err)
	}
	return n, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	res, err := s.messages.UpdateMany(ctx, unreadFilter(chatID, readerID), bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, mongoErr("mark read", err)
	}
	return res.ModifiedCount, nil
}

// mongoErr maps driver errors onto the package sentinels.
func mongoErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

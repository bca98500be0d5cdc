package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresStore is the relational backend. Lists are stored as arrays and
// chats carry the ordered pair in user_a/user_b with a unique pair_key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// postgresSchema holds the tables and indexes Migrate creates. User ids in
// interactions and chats are plain columns: removing a user leaves its
// history in place.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		telegram_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		orientation TEXT NOT NULL,
		interested_in TEXT[] NOT NULL DEFAULT '{}',
		relationship_type TEXT[] NOT NULL DEFAULT '{}',
		selected_spokies INTEGER[] NOT NULL DEFAULT '{}',
		profile_photos TEXT[] NOT NULL DEFAULT '{}',
		bio TEXT NOT NULL DEFAULT '',
		tokens INTEGER NOT NULL DEFAULT 10,
		location_lat DOUBLE PRECISION,
		location_lng DOUBLE PRECISION,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS interactions (
		interaction_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		target_user_id TEXT NOT NULL,
		action VARCHAR(20) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS chats (
		chat_id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		pair_key TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_message TEXT,
		last_message_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(chat_id),
		sender_id TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_read BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	// databases created before user ids became plain columns
	`ALTER TABLE interactions DROP CONSTRAINT IF EXISTS interactions_user_id_fkey`,
	`ALTER TABLE interactions DROP CONSTRAINT IF EXISTS interactions_target_user_id_fkey`,
	`ALTER TABLE chats DROP CONSTRAINT IF EXISTS chats_user_a_fkey`,
	`ALTER TABLE chats DROP CONSTRAINT IF EXISTS chats_user_b_fkey`,

	`CREATE INDEX IF NOT EXISTS idx_users_search ON users(is_active, created_at, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_actor ON interactions(user_id, target_user_id, action)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_target ON interactions(target_user_id, action, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_user_a ON chats(user_a, last_message_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_user_b ON chats(user_b, last_message_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, timestamp, message_id)`,
}

// Migrate creates all tables and indexes if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, q := range postgresSchema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}

const userColumns = `user_id, telegram_id, name, age, gender, orientation, interested_in,
	relationship_type, selected_spokies, profile_photos, bio, tokens,
	location_lat, location_lng, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		traits   []int64
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&u.UserID, &u.TelegramID, &u.Name, &u.Age, &u.Gender, &u.Orientation,
		pq.Array(&u.InterestedIn), pq.Array(&u.RelationshipType), pq.Array(&traits),
		pq.Array(&u.Photos), &u.Bio, &u.Tokens, &lat, &lng, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.TraitTags = fromInt64s(traits)
	if lat.Valid && lng.Valid {
		u.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	var lat, lng sql.NullFloat64
	if u.Location != nil {
		lat = sql.NullFloat64{Float64: u.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: u.Location.Lng, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		u.UserID, u.TelegramID, u.Name, u.Age, u.Gender, u.Orientation,
		pq.Array(nonNilStrings(u.InterestedIn)), pq.Array(nonNilStrings(u.RelationshipType)),
		pq.Array(toInt64s(u.TraitTags)), pq.Array(nonNilStrings(u.Photos)),
		u.Bio, u.Tokens, lat, lng, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	return pgErr("insert user", err)
}

func (s *PostgresStore) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err != nil {
		return nil, pgErr("get user", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
	if err != nil {
		return nil, pgErr("get user", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ANY($1)`, pq.Array(userIDs))
}

func (s *PostgresStore) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgErr("query users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, pgErr("scan user", err)
		}
		users = append(users, *u)
	}
	return users, pgErr("iterate users", rows.Err())
}

func (s *PostgresStore) UpdateUser(ctx context.Context, telegramID string, upd models.ProfileUpdate, updatedAt time.Time) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("updated_at", updatedAt)
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Bio != nil {
		add("bio", *upd.Bio)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Gender != nil {
		add("gender", *upd.Gender)
	}
	if upd.Orientation != nil {
		add("orientation", *upd.Orientation)
	}
	if upd.InterestedIn != nil {
		add("interested_in", pq.Array(nonNilStrings(*upd.InterestedIn)))
	}
	if upd.RelationshipType != nil {
		add("relationship_type", pq.Array(nonNilStrings(*upd.RelationshipType)))
	}
	if upd.TraitTags != nil {
		add("selected_spokies", pq.Array(toInt64s(*upd.TraitTags)))
	}
	if upd.Location != nil {
		add("location_lat", upd.Location.Lat)
		add("location_lng", upd.Location.Lng)
	}

	args = append(args, telegramID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE telegram_id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return pgErr("update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pgErr("update user", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SearchUsers(ctx context.Context, f SearchFilter) ([]models.User, error) {
	args := []any{f.ExcludeTelegramID, pq.Array(nonNilStrings(f.ExcludeUserIDs))}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE is_active AND telegram_id <> $1 AND NOT (user_id = ANY($2))`
	if len(f.Genders) > 0 {
		args = append(args, pq.Array(f.Genders))
		query += fmt.Sprintf(" AND gender = ANY($%d)", len(args))
	}
	query += " ORDER BY created_at ASC, user_id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, f.Skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))
	return s.queryUsers(ctx, query, args...)
}

func (s *PostgresStore) AppendInteraction(ctx context.Context, in *models.Interaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (interaction_id, user_id, target_user_id, action, timestamp)
		VALUES ($1, $2, $3, $4, $5)`,
		in.InteractionID, in.UserID, in.TargetUserID, string(in.Action), in.Timestamp,
	)
	return pgErr("insert interaction", err)
}

func (s *PostgresStore) InteractedTargetIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT target_user_id FROM interactions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, pgErr("query targets", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pgErr("scan target", err)
		}
		ids = append(ids, id)
	}
	return ids, pgErr("iterate targets", rows.Err())
}

func (s *PostgresStore) HasInteraction(ctx context.Context, actorID, targetID string, actions []models.Action) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM interactions WHERE user_id = $1 AND target_user_id = $2 AND action = ANY($3))`,
		actorID, targetID, pq.Array(actionStrings(actions)),
	).Scan(&exists)
	if err != nil {
		return false, pgErr("query reciprocal interaction", err)
	}
	return exists, nil
}

func (s *PostgresStore) InteractionsReceived(ctx context.Context, userID string, actions []models.Action) ([]models.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interaction_id, user_id, target_user_id, action, timestamp FROM interactions
		WHERE target_user_id = $1 AND action = ANY($2)
		ORDER BY timestamp DESC, interaction_id ASC`,
		userID, pq.Array(actionStrings(actions)),
	)
	if err != nil {
		return nil, pgErr("query received interactions", err)
	}
	defer rows.Close()

	out := []models.Interaction{}
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.InteractionID, &in.UserID, &in.TargetUserID, &in.Action, &in.Timestamp); err != nil {
			return nil, pgErr("scan interaction", err)
		}
		in.Timestamp = in.Timestamp.UTC()
		out = append(out, in)
	}
	return out, pgErr("iterate interactions", rows.Err())
}

const chatColumns = `chat_id, user_a, user_b, pair_key, created_at, last_message, last_message_time`

func scanChat(row rowScanner) (*models.ChatRoom, error) {
	var (
		c    models.ChatRoom
		a, b string
		last sql.NullString
	)
	if err := row.Scan(&c.ChatID, &a, &b, &c.PairKey, &c.CreatedAt, &last, &c.LastMessageTime); err != nil {
		return nil, err
	}
	c.Participants = []string{a, b}
	if last.Valid {
		c.LastMessage = &last.String
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.LastMessageTime = c.LastMessageTime.UTC()
	return &c, nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, c *models.ChatRoom) error {
	if len(c.Participants) != 2 {
		return fmt.Errorf("insert chat: want 2 participants, got %d", len(c.Participants))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (`+chatColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ChatID, c.Participants[0], c.Participants[1], c.PairKey, c.CreatedAt,
		nullString(c.LastMessage), c.LastMessageTime,
	)
	return pgErr("insert chat", err)
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (*models.ChatRoom, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id = $1`, chatID))
	if err != nil {
		return nil, pgErr("get chat", err)
	}
	return c, nil
}

func (s *PostgresStore) GetChatByPair(ctx context.Context, pairKey string) (*models.ChatRoom, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE pair_key = $1`, pairKey))
	if err != nil {
		return nil, pgErr("get chat", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE user_a = $1 OR user_b = $1
		ORDER BY last_message_time DESC, chat_id ASC`, userID)
	if err != nil {
		return nil, pgErr("query chats", err)
	}
	defer rows.Close()

	out := []models.ChatRoom{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, pgErr("scan chat", err)
		}
		out = append(out, *c)
	}
	return out, pgErr("iterate chats", rows.Err())
}

func (s *PostgresStore) SetLastMessage(ctx context.Context, chatID, body string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET last_message = $1, last_message_time = $2 WHERE chat_id = $3`,
		body, at, chatID)
	if err != nil {
		return pgErr("update chat", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pgErr("update chat", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, m *models.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, chat_id, sender_id, message, timestamp, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.MessageID, m.ChatID, m.SenderID, m.Body, m.Timestamp, m.IsRead,
	)
	return pgErr("insert message", err)
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string, skip, limit int64) ([]models.Message, error) {
	query := `SELECT message_id, chat_id, sender_id, message, timestamp, is_read FROM messages
		WHERE chat_id = $1 ORDER BY timestamp ASC, message_id ASC`
	args := []any{chatID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgErr("query messages", err)
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.ChatID, &m.SenderID, &m.Body, &m.Timestamp, &m.IsRead); err != nil {
			return nil, pgErr("scan message", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	return out, pgErr("iterate messages", rows.Err())
}

func (s *PostgresStore) CountUnread(ctx context.Context, chatID, readerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read`,
		chatID, readerID).Scan(&n)
	if err != nil {
		return 0, pgErr("count unread", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read`,
		chatID, readerID)
	if err != nil {
		return 0, pgErr("mark read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pgErr("mark read", err)
	}
	return n, nil
}

// pgErr maps driver errors onto the package sentinels. A nil err stays nil.
func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func actionStrings(actions []models.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// Hash field names of the per-user record. The four session fields are
// always written together: either all set (active session) or all cleared.
const (
	fieldAPIKey        = "api_key"
	fieldAPISecret     = "api_secret"
	fieldSessionAlive  = "session_alive"
	fieldTicker        = "ticker"
	fieldEndTime       = "end_time"
	fieldAmountToSpend = "amount_to_spend"
)

// Record represents one user's stored credentials and session fields.
type Record struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	SessionAlive  bool   `json:"session_alive"`
	Ticker        string `json:"ticker"`
	EndTime       string `json:"end_time"`
	AmountToSpend string `json:"amount_to_spend"`
}

// Store persists per-user records in Redis, keyed by the user's chat identity.
type Store struct {
	client *redis.Client
}

// New creates a new store backed by the given Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// SaveCredentials stores a verified credential pair for the user. First-time
// users get their session fields initialized to the inactive state;
// re-verification overwrites only the credential pair.
func (s *Store) SaveCredentials(ctx context.Context, userID, apiKey, apiSecret string) error {
	existing, err := s.client.Exists(ctx, userID).Result()
	if err != nil {
		return fmt.Errorf("failed to check record for %s: %w", userID, err)
	}

	fields := map[string]interface{}{
		fieldAPIKey:    apiKey,
		fieldAPISecret: apiSecret,
	}
	if existing == 0 {
		fields[fieldSessionAlive] = strconv.FormatBool(false)
		fields[fieldTicker] = ""
		fields[fieldEndTime] = ""
		fields[fieldAmountToSpend] = ""
	}

	if err := s.client.HSet(ctx, userID, fields).Err(); err != nil {
		return fmt.Errorf("failed to store credentials for %s: %w", userID, err)
	}
	return nil
}

// Get returns the record for the user, or nil if none is stored.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	data, err := s.client.HGetAll(ctx, userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record for %s: %w", userID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return parseRecord(data), nil
}

// StartSession marks the user's session active and sets all three session
// parameters in a single write so the record can never be half-updated.
func (s *Store) StartSession(ctx context.Context, userID, ticker, endTime, amountToSpend string) error {
	fields := map[string]interface{}{
		fieldSessionAlive:  strconv.FormatBool(true),
		fieldTicker:        ticker,
		fieldEndTime:       endTime,
		fieldAmountToSpend: amountToSpend,
	}
	if err := s.client.HSet(ctx, userID, fields).Err(); err != nil {
		return fmt.Errorf("failed to persist session for %s: %w", userID, err)
	}
	return nil
}

// ClearSession resets the user's session fields to the inactive state,
// leaving the credential pair in place.
func (s *Store) ClearSession(ctx context.Context, userID string) error {
	fields := map[string]interface{}{
		fieldSessionAlive:  strconv.FormatBool(false),
		fieldTicker:        "",
		fieldEndTime:       "",
		fieldAmountToSpend: "",
	}
	if err := s.client.HSet(ctx, userID, fields).Err(); err != nil {
		return fmt.Errorf("failed to clear session for %s: %w", userID, err)
	}
	return nil
}

// parseRecord converts a raw Redis hash into a Record.
func parseRecord(data map[string]string) *Record {
	alive, _ := strconv.ParseBool(data[fieldSessionAlive])
	return &Record{
		APIKey:        data[fieldAPIKey],
		APISecret:     data[fieldAPISecret],
		SessionAlive:  alive,
		Ticker:        data[fieldTicker],
		EndTime:       data[fieldEndTime],
		AmountToSpend: data[fieldAmountToSpend],
	}
}

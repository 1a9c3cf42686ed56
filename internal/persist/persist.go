package persist

import (
	"context"
	"encoding/json"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gen62/genchat/internal/session"
)

// recordKey is the single fixed key the whole app state lives under; every
// save overwrites the previous value.
const recordKey = "gen62-data"

type Record struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string { return "app_records" }

type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "automigrate")
	}
	return &Store{db: db, logger: logger.With().Str("component", "persist").Logger()}, nil
}

// storedState is the on-disk shape of the record. Field names match the
// original browser-storage payload so the JSON stays recognizable.
type storedState struct {
	BaseURL    string            `json:"baseUrl"`
	Model      string            `json:"model"`
	Sessions   []session.Session `json:"sessions"`
	IsDarkMode bool              `json:"isDarkMode"`
	Username   string            `json:"username"`
	IsLoggedIn bool              `json:"isLoggedIn"`
}

// Save serializes the snapshot under the fixed key, replacing whatever was
// there.
func (s *Store) Save(ctx context.Context, st session.State) error {
	payload, err := json.Marshal(storedState{
		BaseURL:    st.BaseURL,
		Model:      st.Model,
		Sessions:   st.Sessions,
		IsDarkMode: st.IsDarkMode,
		Username:   st.Username,
		IsLoggedIn: st.IsLoggedIn,
	})
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	rec := Record{Key: recordKey, Value: string(payload), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// Load restores the record. A missing record yields the zero state; a
// malformed record is decoded field by field, with any unreadable field left
// at its default. Load never fails the startup path over bad data.
func (s *Store) Load(ctx context.Context) (session.State, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", recordKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.State{}, nil
	}
	if err != nil {
		return session.State{}, errors.Wrap(err, "read record")
	}
	return s.decode([]byte(rec.Value)), nil
}

func (s *Store) decode(raw []byte) session.State {
	var st session.State

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		s.logger.Warn().Err(err).Msg("stored record unreadable, starting fresh")
		return st
	}

	decodeField(s.logger, fields, "baseUrl", &st.BaseURL)
	decodeField(s.logger, fields, "model", &st.Model)
	decodeField(s.logger, fields, "sessions", &st.Sessions)
	decodeField(s.logger, fields, "isDarkMode", &st.IsDarkMode)
	decodeField(s.logger, fields, "username", &st.Username)
	decodeField(s.logger, fields, "isLoggedIn", &st.IsLoggedIn)

	if st.Sessions == nil {
		st.Sessions = []session.Session{}
	}
	return st
}

func decodeField[T any](logger zerolog.Logger, fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn().Err(err).Str("field", key).Msg("discarding unreadable field")
		return
	}
	*dst = v
}

package database

import (
	"context"
	dbsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
	"github.com/docpilot/docpilot/sql"
	"github.com/google/uuid"
)

// SessionsDBHandlerFunctions defines the interface for Sessions database operations.
type SessionsDBHandlerFunctions interface {
	InsertSession(session *model.Session) error
	SelectSession(rid uuid.UUID) (*model.Session, error)
	SelectSessionByClientKey(clientKey string) (*model.Session, error)
	SelectAllSessions() ([]*model.Session, error)
	InsertMessage(msg *model.Message) error
	SelectMessagesBySession(sessionRID uuid.UUID) ([]*model.Message, error)
	ReconcileSessions(fromRID uuid.UUID, toRID uuid.UUID) (int64, error)
	DeleteSession(rid uuid.UUID) error
}

// SessionsDBHandler handles session- and message-related database operations
type SessionsDBHandler struct {
	db *helper.Database
}

// NewSessionsDBHandler creates a new sessions database handler.
// It initializes the database connection and loads session-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewSessionsDBHandler(db *helper.Database, force bool) (*SessionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	sessionsDbHandler := &SessionsDBHandler{
		db: db,
	}

	err := sql.LoadSessionsSql(sessionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load sessions sql", err)
	}

	err = sessionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized SessionsDBHandler")

	return sessionsDbHandler, nil
}

// CreateTable creates the 'sessions' and 'messages' tables in the database.
// If the tables already exist, it does not create them again.
func (h *SessionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Use the SQL init() function to create all tables and indexes
	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_sessions();`)
	if err != nil {
		log.Panicf("error initializing sessions tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables sessions and messages")

	return nil
}

func scanSession(row interface{ Scan(...any) error }, session *model.Session) error {
	return row.Scan(
		&session.ID,
		&session.RID,
		&session.ClientKey,
		&session.Title,
		&session.Metadata,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
}

func scanMessage(row interface{ Scan(...any) error }, msg *model.Message) error {
	var classificationJSON, sourcesJSON, tracesJSON []byte
	err := row.Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.RID,
		&msg.ClientKey,
		&msg.Role,
		&msg.Content,
		&msg.SequenceNumber,
		&msg.ResponseType,
		&classificationJSON,
		&sourcesJSON,
		&tracesJSON,
		&msg.ExecutionMs,
		&msg.CreatedAt,
	)
	if err != nil {
		return err
	}

	if len(classificationJSON) > 0 {
		if err := json.Unmarshal(classificationJSON, &msg.Classification); err != nil {
			return fmt.Errorf("unmarshaling classification: %w", err)
		}
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &msg.Sources); err != nil {
			return fmt.Errorf("unmarshaling sources: %w", err)
		}
	}
	if len(tracesJSON) > 0 {
		if err := json.Unmarshal(tracesJSON, &msg.Traces); err != nil {
			return fmt.Errorf("unmarshaling traces: %w", err)
		}
	}
	return nil
}

// InsertSession inserts a new session. A session with a client key that
// already exists is reconciled into the existing row, latest writer wins.
func (h *SessionsDBHandler) InsertSession(session *model.Session) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_session($1, $2, $3)`,
		session.ClientKey,
		session.Title,
		session.Metadata,
	)

	err := scanSession(row, session)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectSession retrieves a session by RID
func (h *SessionsDBHandler) SelectSession(rid uuid.UUID) (*model.Session, error) {
	session := &model.Session{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_session($1)`,
		rid,
	)

	err := scanSession(row, session)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, helper.NewError("select session", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return session, nil
}

// SelectSessionByClientKey retrieves a session by its client-generated key
func (h *SessionsDBHandler) SelectSessionByClientKey(clientKey string) (*model.Session, error) {
	session := &model.Session{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_session_by_client_key($1)`,
		clientKey,
	)

	err := scanSession(row, session)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, helper.NewError("select session by client key", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return session, nil
}

// SelectAllSessions retrieves all sessions, most recently active first
func (h *SessionsDBHandler) SelectAllSessions() ([]*model.Session, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_sessions()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		err := scanSession(rows, session)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return sessions, nil
}

// InsertMessage inserts a message into a session. The sequence number is
// allocated atomically inside the database, so callers never pass one.
// A message with a client key that already exists in the session is
// reconciled into the existing row and keeps its sequence number.
func (h *SessionsDBHandler) InsertMessage(msg *model.Message) error {
	classificationJSON, err := marshalNullable(msg.Classification)
	if err != nil {
		return helper.NewError("marshal classification", err)
	}
	sourcesJSON, err := marshalNullable(msg.Sources)
	if err != nil {
		return helper.NewError("marshal sources", err)
	}
	tracesJSON, err := marshalNullable(msg.Traces)
	if err != nil {
		return helper.NewError("marshal traces", err)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_message($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.SessionID,
		msg.ClientKey,
		msg.Role,
		msg.Content,
		msg.ResponseType,
		classificationJSON,
		sourcesJSON,
		tracesJSON,
		msg.ExecutionMs,
	)

	err = scanMessage(row, msg)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMessagesBySession retrieves all messages of a session ordered by
// sequence number
func (h *SessionsDBHandler) SelectMessagesBySession(sessionRID uuid.UUID) ([]*model.Message, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_messages_by_session($1)`,
		sessionRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		err := scanMessage(rows, msg)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		messages = append(messages, msg)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return messages, nil
}

// ReconcileSessions merges the session fromRID into toRID and deletes the
// source session. Moved messages are resequenced in the target; messages
// whose client key already exists there are deduped, the later write wins.
// Returns the number of messages moved.
func (h *SessionsDBHandler) ReconcileSessions(fromRID uuid.UUID, toRID uuid.UUID) (int64, error) {
	var moved int64
	err := h.db.Instance.QueryRow(
		`SELECT reconcile_sessions($1, $2)`,
		fromRID,
		toRID,
	).Scan(&moved)
	if err != nil {
		if isNotFoundError(err) {
			return 0, helper.NewError("reconcile sessions", model.ErrNotFound)
		}
		return 0, helper.NewError("exec", err)
	}
	return moved, nil
}

// isNotFoundError reports whether err is the plpgsql 'session % not found'
// exception raised by the session functions.
func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

// DeleteSession deletes a session by RID. Messages are removed by the
// foreign key cascade.
func (h *SessionsDBHandler) DeleteSession(rid uuid.UUID) error {
	var deleted int64
	err := h.db.Instance.QueryRow(
		`SELECT delete_session($1)`,
		rid,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return helper.NewError("delete session", model.ErrNotFound)
	}
	return nil
}

// marshalNullable marshals v to JSON, mapping nil pointers and empty slices
// to a database NULL.
func marshalNullable(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" || string(data) == "[]" {
		return nil, nil
	}
	return data, nil
}

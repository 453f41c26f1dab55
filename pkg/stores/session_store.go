package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/sqlsession/pkg/codec"
	"github.com/theapemachine/sqlsession/pkg/errors"
	"github.com/theapemachine/sqlsession/pkg/metrics"
	"github.com/theapemachine/sqlsession/pkg/session"
)

/*
SessionRepository is the part of the store request-scoped callers need.
*/
type SessionRepository interface {
	CreateSession() *session.Record
	Save(ctx context.Context, record *session.Record) error
	GetSession(ctx context.Context, id string) (*session.Record, bool, error)
	Delete(ctx context.Context, id string) error
}

/*
DestroyedListener is told about every session whose rows were deleted, either
explicitly or by the expiry sweep.
*/
type DestroyedListener func(ctx context.Context, sessionID string)

type SessionStoreOption func(*SessionStore)

/*
SessionStore persists sessions in two tables: one metadata row per session
and one row per attribute. Records remember what changed since they were
loaded, so a save writes only the touched columns and attribute rows.
The database is the only point of coordination between goroutines; the
store holds no locks and keeps no session state of its own. The records it
hands out are not safe for concurrent use.
*/
type SessionStore struct {
	handle                     RelationalHandle
	dialect                    Dialect
	codec                      codec.Codec
	defaultMaxInactiveInterval int
	metrics                    *metrics.StoreMetrics
	listeners                  []DestroyedListener
	now                        func() time.Time
}

type metadataRow struct {
	SessionID           string        `db:"session_id"`
	CreationTime        sql.NullInt64 `db:"creationTime"`
	MaxInactiveInterval sql.NullInt64 `db:"maxInactiveInterval"`
	LastAccessedTime    sql.NullInt64 `db:"lastAccessedTime"`
}

type attributeRow struct {
	AttributeName  string `db:"attributeName"`
	AttributeValue []byte `db:"attributeValue"`
}

/*
NewSessionStore creates the session tables if they are missing and returns a
store using handle. Without options, new sessions expire after 1800 seconds of
inactivity and attributes are encoded with gob.
*/
func NewSessionStore(
	ctx context.Context, handle RelationalHandle, options ...SessionStoreOption,
) (*SessionStore, error) {
	if handle == nil {
		return nil, errors.ErrInvalidArgument.WithMessagef("relational handle cannot be nil")
	}

	if sqlHandle, ok := handle.(*SQLHandle); ok && sqlHandle == nil {
		return nil, errors.ErrInvalidArgument.WithMessagef("relational handle cannot be nil")
	}

	store := &SessionStore{
		handle:                     handle,
		dialect:                    SQLite,
		codec:                      codec.NewGob(),
		defaultMaxInactiveInterval: session.DefaultMaxInactiveInterval,
		metrics:                    metrics.NewStoreMetrics(),
		now:                        time.Now,
	}

	if dialected, ok := handle.(interface{ Dialect() Dialect }); ok {
		store.dialect = dialected.Dialect()
	}

	for _, option := range options {
		option(store)
	}

	if store.codec == nil {
		return nil, errors.ErrInvalidArgument.WithMessagef("attribute codec cannot be nil")
	}

	for _, ddl := range store.dialect.Schema() {
		if err := handle.CreateTable(ctx, ddl); err != nil {
			log.Error("failed to create session schema", "dialect", store.dialect.Name, "error", err)
			return nil, errors.ErrBackendFailure.WithMessagef("failed to create session schema").Wrap(err)
		}
	}

	return store, nil
}

/*
CreateSession returns a new, unsaved session using the default interval.
*/
func (store *SessionStore) CreateSession() *session.Record {
	return session.NewAt(store.now(), store.defaultMaxInactiveInterval)
}

/*
Save writes the record's pending changes. Attributes are encoded first. Then
the metadata row is inserted when missing, dirty metadata columns are updated,
and attribute removals and upserts are applied in two batches. The record
keeps its pending changes when anything fails, so calling Save again is safe.
*/
func (store *SessionStore) Save(ctx context.Context, record *session.Record) error {
	if record == nil {
		return errors.ErrInvalidArgument.WithMessagef("session record cannot be nil")
	}

	start := time.Now()

	err := record.Flush(func(delta session.Delta) error {
		return store.saveDelta(ctx, delta)
	})

	store.metrics.RecordSave(err == nil, time.Since(start))

	if err == nil {
		log.Debug("saved session", "session_id", record.ID())
	}

	return err
}

func (store *SessionStore) saveDelta(ctx context.Context, delta session.Delta) error {
	var deletes, upserts []map[string]any

	// Encode everything up front so a codec failure writes nothing.
	for _, change := range delta.Attributes {
		uniqueKey := session.UniqueKey(delta.SessionID, change.Name)

		if change.Removed {
			deletes = append(deletes, map[string]any{"uniqueKey": uniqueKey})
			continue
		}

		encoded, err := store.codec.Encode(change.Value)
		if err != nil {
			log.Error("failed to encode attribute", "session_id", delta.SessionID, "attribute", change.Name, "error", err)
			return errors.ErrEncodingFailure.WithMessagef("failed to encode attribute %q", change.Name).Wrap(err)
		}

		upserts = append(upserts, map[string]any{
			"uniqueKey":      uniqueKey,
			"session_id":     delta.SessionID,
			"attributeName":  change.Name,
			"attributeValue": encoded,
		})
	}

	if _, err := store.handle.Update(
		ctx, insertMetadataQuery, map[string]any{"session_id": delta.SessionID},
	); err != nil {
		log.Error("failed to insert session row", "session_id", delta.SessionID, "error", err)
		return store.backendFailure("failed to insert session row", err)
	}

	for _, change := range delta.Metadata {
		column, ok := metadataColumns[change.Field]

		if !ok {
			log.Warn("skipping unknown metadata field", "session_id", delta.SessionID, "field", change.Field)
			continue
		}

		if _, err := store.handle.Update(
			ctx,
			fmt.Sprintf(updateMetadataQuery, column),
			map[string]any{"session_id": delta.SessionID, "value": change.Value},
		); err != nil {
			log.Error("failed to update session metadata", "session_id", delta.SessionID, "field", column, "error", err)
			return store.backendFailure("failed to update "+column, err)
		}
	}

	if err := store.handle.BatchUpdate(ctx, deleteAttributeQuery, deletes); err != nil {
		log.Error("failed to delete attributes", "session_id", delta.SessionID, "count", len(deletes), "error", err)
		return store.backendFailure("failed to delete attributes", err)
	}

	if err := store.handle.BatchUpdate(ctx, upsertAttributeQuery, upserts); err != nil {
		log.Error("failed to write attributes", "session_id", delta.SessionID, "count", len(upserts), "error", err)
		return store.backendFailure("failed to write attributes", err)
	}

	return nil
}

/*
GetSession loads a session and marks it accessed now. Sessions that do not
exist, or that expired but were not swept yet, are reported as absent. The
access time is only persisted when the caller saves the record.
*/
func (store *SessionStore) GetSession(
	ctx context.Context, id string,
) (*session.Record, bool, error) {
	return store.load(ctx, id, true)
}

/*
Peek loads a live session like GetSession but leaves it untouched, so the
record shows the stored access time and has no pending changes.
*/
func (store *SessionStore) Peek(
	ctx context.Context, id string,
) (*session.Record, bool, error) {
	return store.load(ctx, id, false)
}

func (store *SessionStore) load(
	ctx context.Context, id string, touch bool,
) (*session.Record, bool, error) {
	start := time.Now()

	snapshot, found, err := store.loadMetadata(ctx, id, false)

	if err != nil || !found {
		store.metrics.RecordLoad(false, time.Since(start))
		return nil, false, err
	}

	var rows []attributeRow

	if err = store.handle.Query(
		ctx, &rows, selectAttributesQuery, map[string]any{"session_id": id},
	); err != nil {
		log.Error("failed to read attributes", "session_id", id, "error", err)
		store.metrics.RecordLoad(false, time.Since(start))
		return nil, false, store.backendFailure("failed to read attributes", err)
	}

	snapshot.Attributes = make(map[string]any, len(rows))

	for _, row := range rows {
		value, err := store.codec.Decode(row.AttributeValue)

		if err != nil {
			log.Error("failed to decode attribute", "session_id", id, "attribute", row.AttributeName, "error", err)
			store.metrics.RecordLoad(false, time.Since(start))
			return nil, false, errors.ErrEncodingFailure.WithMessagef(
				"failed to decode attribute %q", row.AttributeName,
			).Wrap(err)
		}

		snapshot.Attributes[row.AttributeName] = value
	}

	record := session.Load(snapshot)

	if touch {
		record.Touch(store.now())
	}

	store.metrics.RecordLoad(true, time.Since(start))
	log.Debug("loaded session", "session_id", id, "attributes", len(rows))

	return record, true, nil
}

/*
loadMetadata reads the metadata row for id. Unless allowExpired is set, an
expired session is reported as absent. Expiry depends on metadata alone, so
it is decided before any attribute is read or decoded.
*/
func (store *SessionStore) loadMetadata(
	ctx context.Context, id string, allowExpired bool,
) (session.Snapshot, bool, error) {
	if id == "" {
		return session.Snapshot{}, false, nil
	}

	var row metadataRow

	found, err := store.handle.QueryRow(
		ctx, &row, selectMetadataQuery, map[string]any{"session_id": id},
	)

	if err != nil {
		log.Error("failed to read session", "session_id", id, "error", err)
		return session.Snapshot{}, false, store.backendFailure("failed to read session", err)
	}

	if !found {
		return session.Snapshot{}, false, nil
	}

	snapshot := session.Snapshot{
		ID:                  row.SessionID,
		CreationTime:        row.CreationTime.Int64,
		LastAccessedTime:    row.LastAccessedTime.Int64,
		MaxInactiveInterval: store.defaultMaxInactiveInterval,
	}

	if row.MaxInactiveInterval.Valid {
		snapshot.MaxInactiveInterval = int(row.MaxInactiveInterval.Int64)
	}

	if !allowExpired && session.Load(snapshot).IsExpiredAt(store.now()) {
		log.Debug("session expired", "session_id", id)
		return session.Snapshot{}, false, nil
	}

	return snapshot, true, nil
}

/*
Delete removes a session and all of its attributes, whether or not it has
expired. Deleting an empty or unknown id does nothing.
*/
func (store *SessionStore) Delete(ctx context.Context, id string) error {
	_, found, err := store.loadMetadata(ctx, id, true)

	if err != nil || !found {
		return err
	}

	params := map[string]any{"session_id": id}

	if _, err = store.handle.Update(ctx, deleteMetadataQuery, params); err != nil {
		log.Error("failed to delete session", "session_id", id, "error", err)
		return store.backendFailure("failed to delete session", err)
	}

	if _, err = store.handle.Update(ctx, deleteAttributesQuery, params); err != nil {
		log.Error("failed to delete session attributes", "session_id", id, "error", err)
		return store.backendFailure("failed to delete session attributes", err)
	}

	store.metrics.RecordDelete()
	log.Info("deleted session", "session_id", id)

	for _, listener := range store.listeners {
		listener(ctx, id)
	}

	return nil
}

/*
CleanupExpiredSessions deletes every session whose inactivity interval has
elapsed, through the same path as Delete, and returns how many were removed.
It stops at the first failure. Nothing schedules it; see package sweep.
*/
func (store *SessionStore) CleanupExpiredSessions(ctx context.Context) (int, error) {
	start := time.Now()

	var ids []string

	if err := store.handle.Query(
		ctx, &ids, selectExpiredQuery, map[string]any{
			"now":             store.now().UnixMilli(),
			"defaultInterval": store.defaultMaxInactiveInterval,
		},
	); err != nil {
		log.Error("failed to find expired sessions", "error", err)
		return 0, store.backendFailure("failed to find expired sessions", err)
	}

	removed := 0

	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			store.metrics.RecordSweep(removed, time.Since(start))
			return removed, err
		}

		removed++
	}

	store.metrics.RecordSweep(removed, time.Since(start))

	if removed > 0 {
		log.Info("removed expired sessions", "count", removed, "duration", time.Since(start))
	}

	return removed, nil
}

/*
Count returns the number of stored sessions, expired or not.
*/
func (store *SessionStore) Count(ctx context.Context) (int, error) {
	var count int

	if _, err := store.handle.QueryRow(ctx, &count, countQuery, map[string]any{}); err != nil {
		log.Error("failed to count sessions", "error", err)
		return 0, store.backendFailure("failed to count sessions", err)
	}

	return count, nil
}

func (store *SessionStore) Metrics() *metrics.StoreMetrics {
	return store.metrics
}

func (store *SessionStore) backendFailure(message string, err error) error {
	store.metrics.RecordBackendError()
	return errors.ErrBackendFailure.WithMessagef("%s", message).Wrap(err)
}

/*
WithDefaultMaxInactiveInterval sets the interval, in seconds, of sessions
returned by CreateSession. Negative values create sessions that never expire.
*/
func WithDefaultMaxInactiveInterval(seconds int) SessionStoreOption {
	return func(store *SessionStore) {
		store.defaultMaxInactiveInterval = seconds
	}
}

func WithCodec(attributeCodec codec.Codec) SessionStoreOption {
	return func(store *SessionStore) {
		store.codec = attributeCodec
	}
}

func WithDialect(dialect Dialect) SessionStoreOption {
	return func(store *SessionStore) {
		store.dialect = dialect
	}
}

func WithMetrics(storeMetrics *metrics.StoreMetrics) SessionStoreOption {
	return func(store *SessionStore) {
		if storeMetrics != nil {
			store.metrics = storeMetrics
		}
	}
}

func WithDestroyedListener(listener DestroyedListener) SessionStoreOption {
	return func(store *SessionStore) {
		store.listeners = append(store.listeners, listener)
	}
}

/*
WithClock replaces time.Now for creation, touch-on-load and expiry decisions.
*/
func WithClock(now func() time.Time) SessionStoreOption {
	return func(store *SessionStore) {
		store.now = now
	}
}

package session

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

/*
DefaultMaxInactiveInterval is the inactivity timeout, in seconds, given to new
sessions when the store is not configured otherwise.
*/
const DefaultMaxInactiveInterval = 1800

// Intervals beyond this many seconds do not fit a time.Duration and are
// treated as never expiring.
const maxIntervalSeconds = int64(math.MaxInt64 / int64(time.Second))

/*
Snapshot is the fully populated state of a session as read from storage.
*/
type Snapshot struct {
	ID                  string
	CreationTime        int64
	LastAccessedTime    int64
	MaxInactiveInterval int
	Attributes          map[string]any
}

/*
Record is a session plus the changes made to it since it was last persisted.
Timestamps are epoch milliseconds, the interval is in seconds and a negative
interval means the session never expires.
*/
type Record struct {
	id                  string
	creationTime        int64
	lastAccessedTime    int64
	maxInactiveInterval int
	attributes          map[string]any

	metadataDelta  metadataDelta
	attributeDelta map[string]attributeChange
}

/*
New creates a fresh session with a random id. All three metadata fields start
out dirty so the first save writes complete metadata.
*/
func New(maxInactiveInterval int) *Record {
	return NewAt(time.Now(), maxInactiveInterval)
}

/*
NewAt is New with an explicit creation time.
*/
func NewAt(now time.Time, maxInactiveInterval int) *Record {
	millis := now.UnixMilli()

	record := &Record{
		id:                  uuid.NewString(),
		creationTime:        millis,
		lastAccessedTime:    millis,
		maxInactiveInterval: maxInactiveInterval,
		attributes:          make(map[string]any),
		attributeDelta:      make(map[string]attributeChange),
	}

	record.metadataDelta.stamp(FieldCreationTime, millis)
	record.metadataDelta.stamp(FieldMaxInactiveInterval, int64(maxInactiveInterval))
	record.metadataDelta.stamp(FieldLastAccessedTime, millis)

	return record
}

/*
Load wraps a snapshot read from storage. The result has no pending changes.
*/
func Load(snapshot Snapshot) *Record {
	attributes := make(map[string]any, len(snapshot.Attributes))
	maps.Copy(attributes, snapshot.Attributes)

	return &Record{
		id:                  snapshot.ID,
		creationTime:        snapshot.CreationTime,
		lastAccessedTime:    snapshot.LastAccessedTime,
		maxInactiveInterval: snapshot.MaxInactiveInterval,
		attributes:          attributes,
		attributeDelta:      make(map[string]attributeChange),
	}
}

func (record *Record) ID() string {
	return record.id
}

/*
Attribute returns the value stored under name and whether it is set.
*/
func (record *Record) Attribute(name string) (any, bool) {
	value, ok := record.attributes[name]
	return value, ok
}

/*
AttributeNames returns the names of all set attributes in sorted order.
*/
func (record *Record) AttributeNames() []string {
	return slices.Sorted(maps.Keys(record.attributes))
}

func (record *Record) CreationTime() int64 {
	return record.creationTime
}

func (record *Record) LastAccessedTime() int64 {
	return record.lastAccessedTime
}

func (record *Record) MaxInactiveInterval() int {
	return record.maxInactiveInterval
}

func (record *Record) SetLastAccessedTime(millis int64) {
	record.lastAccessedTime = millis
	record.metadataDelta.stamp(FieldLastAccessedTime, millis)
}

/*
Touch marks the session as accessed at now.
*/
func (record *Record) Touch(now time.Time) {
	record.SetLastAccessedTime(now.UnixMilli())
}

func (record *Record) SetMaxInactiveInterval(seconds int) {
	record.maxInactiveInterval = seconds
	record.metadataDelta.stamp(FieldMaxInactiveInterval, int64(seconds))
}

/*
SetAttribute stores value under name. A nil value removes the attribute.
*/
func (record *Record) SetAttribute(name string, value any) {
	if value == nil {
		record.RemoveAttribute(name)
		return
	}

	record.attributes[name] = value
	record.attributeDelta[name] = attributeChange{op: attributeSet, value: value}
}

/*
RemoveAttribute deletes name. The removal is recorded even when the attribute
was never set, so a stale row left by another writer is removed too.
*/
func (record *Record) RemoveAttribute(name string) {
	delete(record.attributes, name)
	record.attributeDelta[name] = attributeChange{op: attributeRemove}
}

/*
IsExpired reports whether the session has been idle longer than its interval.
*/
func (record *Record) IsExpired() bool {
	return record.IsExpiredAt(time.Now())
}

/*
IsExpiredAt reports whether the session is expired at now. A session idle for
exactly its interval is still live.
*/
func (record *Record) IsExpiredAt(now time.Time) bool {
	if record.maxInactiveInterval < 0 || int64(record.maxInactiveInterval) > maxIntervalSeconds {
		return false
	}

	idle := now.Sub(time.UnixMilli(record.lastAccessedTime))
	return idle > time.Duration(record.maxInactiveInterval)*time.Second
}

/*
Delta returns a copy of the pending changes.
*/
func (record *Record) Delta() Delta {
	return Delta{
		SessionID:  record.id,
		Metadata:   record.metadataDelta.changes(),
		Attributes: attributeChanges(record.attributeDelta),
	}
}

/*
Dirty reports whether the record has unsaved changes.
*/
func (record *Record) Dirty() bool {
	return !record.Delta().Empty()
}

/*
Flush hands the pending changes to write and forgets them once write returns
nil. On error the changes are kept, so flushing again resends all of them.
*/
func (record *Record) Flush(write func(Delta) error) error {
	if err := write(record.Delta()); err != nil {
		return err
	}

	record.metadataDelta = metadataDelta{}
	clear(record.attributeDelta)

	return nil
}

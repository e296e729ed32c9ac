// internal/repository/mongo/session_store.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"attendance-service/internal/domain/attendance"
	xerrors "attendance-service/internal/pkg/errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionStore keeps sessions in one collection. Every write carries the
// status precondition in its filter.
type SessionStore struct {
	coll *driver.Collection
}

func NewSessionStore(db *driver.Database) *SessionStore {
	return &SessionStore{coll: db.Collection(sessionsCollection)}
}

func liveFilter() bson.D {
	return bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: liveStatuses()}}}}
}

func statusValues(set []attendance.Status) bson.A {
	out := make(bson.A, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

func (m *SessionStore) FindByID(ctx context.Context, id string) (*attendance.Session, error) {
	var s attendance.Session
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&s)
	if errors.Is(err, driver.ErrNoDocuments) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

func (m *SessionStore) FindLiveByUser(ctx context.Context, userID string) (*attendance.Session, error) {
	filter := append(bson.D{{Key: "userId", Value: userID}}, liveFilter()...)
	opts := options.FindOne().SetSort(bson.D{{Key: "exclusive", Value: -1}, {Key: "loginAt", Value: -1}})

	var s attendance.Session
	err := m.coll.FindOne(ctx, filter, opts).Decode(&s)
	if errors.Is(err, driver.ErrNoDocuments) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return &s, nil
}

func (m *SessionStore) InsertLive(ctx context.Context, s *attendance.Session) error {
	if !s.Status.IsLive() {
		return fmt.Errorf("insert live session with status %q: %w", s.Status, xerrors.ErrInvalidInput)
	}
	_, err := m.coll.InsertOne(ctx, s)
	if driver.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), liveSessionIndexName) {
			return attendance.ErrLiveSessionConflict
		}
		return fmt.Errorf("session %s: %w", s.ID, xerrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// closeStage sets a terminal status; logoutAt is kept if already present
// and never lands before loginAt.
func closeStage(to attendance.Status, at time.Time) bson.D {
	set := bson.D{
		{Key: "status", Value: string(to)},
		{Key: "updatedAt", Value: at},
	}
	if to.IsTerminal() {
		set = append(set, bson.E{Key: "logoutAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{
			"$logoutAt",
			bson.D{{Key: "$max", Value: bson.A{at, "$loginAt"}}},
		}}}})
	}
	return bson.D{{Key: "$set", Value: set}}
}

func (m *SessionStore) Transition(ctx context.Context, id string, from []attendance.Status, to attendance.Status, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$in", Value: statusValues(from)}}},
	}
	res, err := m.coll.UpdateOne(ctx, filter, driver.Pipeline{closeStage(to, at)})
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// heartbeatStage builds the pipeline update for upd. Expressions in one
// $set stage read the document as it was before the update.
func heartbeatStage(upd attendance.HeartbeatUpdate) bson.D {
	set := bson.D{{Key: "updatedAt", Value: upd.At}}

	switch upd.Accuracy {
	case attendance.AccuracyPoor:
		next := bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$consecutivePoorHeartbeats", 0}}}, 1}}}
		set = append(set, bson.E{Key: "consecutivePoorHeartbeats", Value: next})
		if upd.SuspectThreshold > 0 {
			set = append(set, bson.E{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{next, upd.SuspectThreshold}}},
				string(attendance.StatusSuspect),
				"$status",
			}}}})
		}
	case attendance.AccuracyGood:
		set = append(set,
			bson.E{Key: "consecutivePoorHeartbeats", Value: 0},
			bson.E{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$status", string(attendance.StatusSuspect)}}},
				string(attendance.StatusActive),
				"$status",
			}}}},
		)
	}
	if upd.Touch {
		set = append(set, bson.E{Key: "lastHeartbeat", Value: upd.At})
	}
	return bson.D{{Key: "$set", Value: set}}
}

func (m *SessionStore) RecordHeartbeat(ctx context.Context, id string, upd attendance.HeartbeatUpdate) (*attendance.Session, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, liveFilter()...)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var s attendance.Session
	err := m.coll.FindOneAndUpdate(ctx, filter, driver.Pipeline{heartbeatStage(upd)}, opts).Decode(&s)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, driver.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if _, err := m.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, attendance.ErrSessionNotLive
}

func staleFilter(c attendance.StaleCriteria) bson.D {
	or := bson.A{
		bson.D{{Key: "lastHeartbeat", Value: nil}},
		bson.D{{Key: "lastHeartbeat", Value: bson.D{{Key: "$lt", Value: c.HeartbeatBefore}}}},
	}
	if c.LoginBefore != nil {
		or = append(or, bson.D{{Key: "loginAt", Value: bson.D{{Key: "$lt", Value: *c.LoginBefore}}}})
	}
	return append(liveFilter(), bson.E{Key: "$or", Value: or})
}

// CloseStale finds candidates and closes each with the same filter, so a
// session that changed in between is left alone and not reported.
func (m *SessionStore) CloseStale(ctx context.Context, c attendance.StaleCriteria, to attendance.Status, at time.Time) ([]attendance.ClosedSession, error) {
	filter := staleFilter(c)
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "userId", Value: 1}})

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	var candidates []struct {
		ID     string `bson:"_id"`
		UserID string `bson:"userId"`
	}
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode stale sessions: %w", err)
	}

	var closed []attendance.ClosedSession
	for _, cand := range candidates {
		one := append(bson.D{{Key: "_id", Value: cand.ID}}, filter...)
		res, err := m.coll.UpdateOne(ctx, one, driver.Pipeline{closeStage(to, at)})
		if err != nil {
			return closed, fmt.Errorf("failed to close session %s: %w", cand.ID, err)
		}
		if res.ModifiedCount > 0 {
			closed = append(closed, attendance.ClosedSession{ID: cand.ID, UserID: cand.UserID})
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed, nil
}

func (m *SessionStore) ListLive(ctx context.Context) ([]*attendance.Session, error) {
	cur, err := m.coll.Find(ctx, liveFilter(), options.Find().SetSort(bson.D{{Key: "loginAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list live sessions: %w", err)
	}
	var out []*attendance.Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode live sessions: %w", err)
	}
	return out, nil
}

// CloseAndSplit claims the original with a conditional update before
// inserting the day records. Standalone servers have no transactions, so
// a failed insert leaves the original closed and is reported as an error.
func (m *SessionStore) CloseAndSplit(ctx context.Context, id string, closure attendance.Closure, continuations []*attendance.Session) (bool, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, liveFilter()...)
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(closure.Status)},
		{Key: "logoutAt", Value: closure.LogoutAt},
		{Key: "workedSeconds", Value: closure.WorkedSeconds},
		{Key: "updatedAt", Value: closure.LogoutAt},
	}}}

	res, err := m.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	if len(continuations) == 0 {
		return true, nil
	}

	docs := make([]any, len(continuations))
	for i, c := range continuations {
		docs[i] = c
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return true, fmt.Errorf("session %s closed but day records failed: %w", id, err)
	}
	return true, nil
}

func (m *SessionStore) Resolve(ctx context.Context, id string, at time.Time) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: string(attendance.StatusSuspect)}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(attendance.StatusActive)},
		{Key: "consecutivePoorHeartbeats", Value: 0},
		{Key: "updatedAt", Value: at},
	}}}
	res, err := m.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to resolve session: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func queryFilter(q attendance.SessionQuery) bson.D {
	filter := bson.D{}
	if q.CompanyID != "" {
		filter = append(filter, bson.E{Key: "companyId", Value: q.CompanyID})
	}
	if q.UserID != "" {
		filter = append(filter, bson.E{Key: "userId", Value: q.UserID})
	}
	if len(q.Statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: statusValues(q.Statuses)}}})
	}
	if q.From != nil || q.To != nil {
		rng := bson.D{}
		if q.From != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: *q.From})
		}
		if q.To != nil {
			rng = append(rng, bson.E{Key: "$lte", Value: *q.To})
		}
		filter = append(filter, bson.E{Key: "loginAt", Value: rng})
	}
	if q.RecentSince != nil {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			liveFilter(),
			bson.D{{Key: "loginAt", Value: bson.D{{Key: "$gte", Value: *q.RecentSince}}}},
		}})
	}
	return filter
}

func (m *SessionStore) List(ctx context.Context, q attendance.SessionQuery) ([]*attendance.Session, int64, error) {
	filter := queryFilter(q)

	total, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "loginAt", Value: -1}, {Key: "_id", Value: 1}})
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := []*attendance.Session{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return out, total, nil
}

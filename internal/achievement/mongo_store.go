// AngelaMos | 2026
// mongo_store.go

package achievement

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

const CollectionName = "achievements"

type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(CollectionName),
		now:  time.Now,
	}
}

// EnsureIndexes creates the indexes list and stats queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "status", Value: 1}, {Key: "isPublic", Value: 1}}},
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create achievement indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, a *Achievement) error {
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert achievement: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*Achievement, error) {
	var a Achievement
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find achievement: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find achievement: %w", err)
	}
	return &a, nil
}

func (s *MongoStore) List(
	ctx context.Context,
	f Filter,
	p Page,
) ([]Achievement, int64, error) {
	filter := buildFilter(f)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count achievements: %w", err)
	}

	dir := 1
	if p.SortDesc {
		dir = -1
	}
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(p.Offset)).
		SetLimit(int64(p.Limit))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list achievements: %w", err)
	}

	items := []Achievement{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode achievements: %w", err)
	}

	return items, total, nil
}

func buildFilter(f Filter) bson.D {
	filter := bson.D{}
	if f.StudentID != "" {
		filter = append(filter, bson.E{Key: "studentId", Value: f.StudentID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.Type != "" {
		filter = append(filter, bson.E{Key: "type", Value: f.Type})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	if f.IsPublic != nil {
		filter = append(filter, bson.E{Key: "isPublic", Value: *f.IsPublic})
	}
	if f.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
			bson.D{{Key: "skillsGained", Value: pattern}},
		}})
	}
	return filter
}

func (s *MongoStore) Update(
	ctx context.Context,
	id string,
	patch Patch,
	requirePending bool,
) (*Achievement, error) {
	return s.findOneAndUpdate(ctx, "update achievement", id,
		guardFilter(id, requirePending), patchUpdate(patch, s.now().UTC()), ErrNotPending)
}

// Decide is the compare-and-swap on status: the filter only matches while
// the record is pending.
func (s *MongoStore) Decide(
	ctx context.Context,
	id string,
	d Decision,
) (*Achievement, error) {
	return s.findOneAndUpdate(ctx, "decide achievement", id,
		guardFilter(id, true), decisionUpdate(d), ErrNotPending)
}

func (s *MongoStore) ToggleVisibility(
	ctx context.Context,
	id, ownerID string,
) (*Achievement, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "studentId", Value: ownerID},
	}

	return s.findOneAndUpdate(ctx, "toggle visibility", id,
		filter, togglePipeline(s.now().UTC()), core.ErrForbidden)
}

func guardFilter(id string, requirePending bool) bson.D {
	filter := bson.D{{Key: "_id", Value: id}}
	if requirePending {
		filter = append(filter, bson.E{Key: "status", Value: StatusPending})
	}
	return filter
}

// patchUpdate sets only the fields present in patch. Review fields have no
// path into the document.
func patchUpdate(patch Patch, now time.Time) bson.D {
	set := bson.D{{Key: "updatedAt", Value: now}}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *patch.Title})
	}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *patch.Description})
	}
	if patch.Type != nil {
		set = append(set, bson.E{Key: "type", Value: *patch.Type})
	}
	if patch.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *patch.Category})
	}
	if patch.DateAwarded != nil {
		set = append(set, bson.E{Key: "dateAwarded", Value: *patch.DateAwarded})
	}
	if patch.SkillsGained != nil {
		set = append(set, bson.E{Key: "skillsGained", Value: *patch.SkillsGained})
	}
	if patch.ExternalReference != nil {
		set = append(set, bson.E{Key: "externalReference", Value: *patch.ExternalReference})
	}
	if patch.IsPublic != nil {
		set = append(set, bson.E{Key: "isPublic", Value: *patch.IsPublic})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(patch.AppendEvidence) > 0 {
		update = append(update, bson.E{Key: "$push", Value: bson.D{
			{Key: "evidence", Value: bson.D{{Key: "$each", Value: patch.AppendEvidence}}},
		}})
	}
	return update
}

func decisionUpdate(d Decision) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: d.Status},
		{Key: "reviewedBy", Value: d.ReviewerID},
		{Key: "reviewedAt", Value: d.At.UTC()},
		{Key: "rejectionReason", Value: d.Reason},
		{Key: "updatedAt", Value: d.At.UTC()},
	}}}
}

// togglePipeline flips isPublic server side so concurrent toggles never
// read a stale value.
func togglePipeline(now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isPublic", Value: bson.D{{Key: "$not", Value: bson.A{"$isPublic"}}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

func (s *MongoStore) Delete(ctx context.Context, id string, requirePending bool) error {
	res, err := s.coll.DeleteOne(ctx, guardFilter(id, requirePending))
	if err != nil {
		return fmt.Errorf("delete achievement: %w", err)
	}

	if res.DeletedCount == 0 {
		return s.missReason(ctx, "delete achievement", id, ErrNotPending)
	}
	return nil
}

func (s *MongoStore) StatsByType(ctx context.Context, studentID string) ([]TypeCount, error) {
	cursor, err := s.coll.Aggregate(ctx, statsPipeline(studentID))
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	counts := []TypeCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return counts, nil
}

func statsPipeline(studentID string) mongo.Pipeline {
	countIf := func(status Status) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$status", status}}}, 1, 0,
		}}}}}
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "studentId", Value: studentID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "approved", Value: countIf(StatusApproved)},
			{Key: "pending", Value: countIf(StatusPending)},
			{Key: "rejected", Value: countIf(StatusRejected)},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (s *MongoStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate status counts: %w", err)
	}

	var rows []struct {
		Status Status `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}

	out := map[Status]int64{StatusPending: 0, StatusApproved: 0, StatusRejected: 0}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) findOneAndUpdate(
	ctx context.Context,
	op, id string,
	filter bson.D,
	update any,
	onMiss error,
) (*Achievement, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var a Achievement
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missReason(ctx, op, id, onMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

// missReason tells a conditional write that matched nothing apart: the id
// is absent (NotFound) or the condition failed (onMiss). The lookup only
// shapes the error; the write itself already decided the outcome.
func (s *MongoStore) missReason(ctx context.Context, op, id string, onMiss error) error {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, onMiss)
}

var _ Store = (*MongoStore)(nil)

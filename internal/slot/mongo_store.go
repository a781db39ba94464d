package slot

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	coll     *mongo.Collection
	weekdays Weekdays
}

func NewMongoStore(coll *mongo.Collection, weekdays Weekdays) *MongoStore {
	return &MongoStore{coll: coll, weekdays: weekdays}
}

var byDateTime = bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}

// EnsureIndexes creates the unique (date, time) index the upsert in Book
// relies on to refuse a second occupant.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    byDateTime,
		Options: options.Index().SetUnique(true).SetName("date_time_unique"),
	})
	if err != nil {
		return fmt.Errorf("create slot index: %w", err)
	}
	return nil
}

func (r *MongoStore) FindSlot(ctx context.Context, date, tm string) (*Slot, error) {
	var s Slot
	err := r.coll.FindOne(ctx, bson.M{"date": date, "time": tm}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoStore) Book(ctx context.Context, b Booking) error {
	label, err := r.weekdays.LabelFor(b.Date)
	if err != nil {
		return err
	}

	set := bson.M{
		"occupied":   true,
		"name":       b.Name,
		"surname":    b.Surname,
		"patient_id": b.PatientID,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"weekday": label},
	}
	if b.Insurance != nil {
		set["insurance"] = *b.Insurance
	} else {
		update["$unset"] = bson.M{"insurance": ""}
	}

	// An occupied slot does not match the filter, so the upsert tries to
	// insert a second document for the key and hits the unique index.
	filter := bson.M{"date": b.Date, "time": b.Time, "occupied": bson.M{"$ne": true}}
	_, err = r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyOccupied
		}
		return fmt.Errorf("book slot: %w", err)
	}
	return nil
}

func (r *MongoStore) Cancel(ctx context.Context, date, tm string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"date": date, "time": tm, "occupied": true},
		bson.M{
			"$set":   bson.M{"occupied": false},
			"$unset": bson.M{"name": "", "surname": "", "patient_id": "", "insurance": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("cancel slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoStore) ListOccupied(ctx context.Context) ([]Slot, error) {
	return r.find(ctx, bson.M{"occupied": true}, byDateTime)
}

func (r *MongoStore) ListAvailable(ctx context.Context, weekday, date string) ([]Slot, error) {
	return r.find(ctx,
		bson.M{"occupied": false, "weekday": weekday, "date": date},
		bson.D{{Key: "time", Value: 1}},
	)
}

func (r *MongoStore) ListWithInsurance(ctx context.Context) ([]Slot, error) {
	return r.find(ctx,
		bson.M{"occupied": true, "insurance": bson.M{"$nin": bson.A{nil, ""}}},
		byDateTime,
	)
}

func (r *MongoStore) find(ctx context.Context, filter bson.M, sort bson.D) ([]Slot, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]Slot, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return result, nil
}

func (r *MongoStore) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": date}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoStore) CountByDate(ctx context.Context, date string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"date": date})
}

func (r *MongoStore) InsertSlots(ctx context.Context, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(slots))
	for _, s := range slots {
		docs = append(docs, s)
	}

	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

func (r *MongoStore) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

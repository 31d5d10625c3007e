package activity

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"goimomi/mq"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Actions recorded for back-office writes.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionStatus = "status"
)

// Event is one admin-visible change.
type Event struct {
	ID       string    `json:"id" bson:"_id"`
	Action   string    `json:"action" bson:"action"`
	Entity   string    `json:"entity" bson:"entity"`
	EntityID uint      `json:"entity_id,omitempty" bson:"entity_id,omitempty"`
	Actor    string    `json:"actor,omitempty" bson:"actor,omitempty"`
	Summary  string    `json:"summary,omitempty" bson:"summary,omitempty"`
	At       time.Time `json:"at" bson:"at"`
}

// Store persists events and returns the most recent ones, newest first.
type Store interface {
	Insert(ctx context.Context, ev Event) error
	Recent(ctx context.Context, offset, limit int) ([]Event, error)
}

// MongoLog keeps events in a MongoDB collection.
type MongoLog struct {
	coll *mongo.Collection
}

func NewMongoLog(client *mongo.Client, database string) *MongoLog {
	return &MongoLog{coll: client.Database(database).Collection("activities")}
}

func (m *MongoLog) Insert(ctx context.Context, ev Event) error {
	_, err := m.coll.InsertOne(ctx, ev)
	return err
}

func (m *MongoLog) Recent(ctx context.Context, offset, limit int) ([]Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MemoryLog keeps the last few events in process. Used when MONGO_URI is unset.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
	max    int
}

func NewMemoryLog(max int) *MemoryLog {
	return &MemoryLog{max: max}
}

func (m *MemoryLog) Insert(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	return nil
}

func (m *MemoryLog) Recent(_ context.Context, offset, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, max(0, min(limit, len(m.events)-offset)))
	for i := len(m.events) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Recorder stores an event and fans it out to live listeners. With a
// publisher the fan-out goes through Redis so every instance's hub sees it;
// without one the local hub is fed directly.
type Recorder struct {
	store Store
	pub   *mq.Publisher
	hub   *Hub
}

func NewRecorder(store Store, pub *mq.Publisher, hub *Hub) *Recorder {
	return &Recorder{store: store, pub: pub, hub: hub}
}

func (rec *Recorder) Store() Store {
	return rec.store
}

// Record never fails the caller; problems are logged.
func (rec *Recorder) Record(ctx context.Context, ev Event) {
	if rec == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	// detach from request cancellation; the write already happened
	ctx = context.WithoutCancel(ctx)
	if err := rec.store.Insert(ctx, ev); err != nil {
		log.Printf("activity insert %s/%s: %v", ev.Entity, ev.Action, err)
	}

	if rec.pub != nil {
		if err := rec.pub.Emit(ctx, ev); err != nil {
			log.Printf("activity publish: %v", err)
		}
		return
	}
	if rec.hub != nil {
		if data, err := json.Marshal(ev); err == nil {
			rec.hub.Broadcast(data)
		}
	}
}

// Relay forwards events published by any instance to the local hub.
func (rec *Recorder) Relay(ctx context.Context) {
	if rec.pub == nil || rec.hub == nil {
		return
	}
	rec.pub.Listen(ctx, rec.hub.Broadcast)
}

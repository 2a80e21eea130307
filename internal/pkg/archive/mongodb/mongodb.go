/*
mongodb.go Optional build-history sink. Subscribes to a session's event stream
and upserts stages, balance snapshots and optimization results so a long
debugging campaign can be queried after the fact.
*/

package mongodb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/msg"
	"github.com/owalsh/gridstage/internal/pkg/stage"
)

// Config holds the connection parameters for the archive database.
type Config struct {
	URI      string
	Database string
}

// Handler drains session events into MongoDB.
type Handler struct {
	mux    *sync.Mutex
	pid    uuid.UUID
	inbox  chan msg.Msg
	config Config
	logger *zap.Logger
	stop   chan bool
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes to the publisher's stage, balance and result topics and
// returns a handler ready to Process.
func New(cfg Config, publisher msg.Publisher, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pid, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range []msg.Topic{msg.Stage, msg.Balance, msg.Result} {
		ch, err := publisher.Subscribe(pid, topic)
		if err != nil {
			return nil, fmt.Errorf("mongodb archive: subscribe: %w", err)
		}
		go redirectMsg(ch, inbox)
	}

	return &Handler{
		mux:    &sync.Mutex{},
		pid:    pid,
		inbox:  inbox,
		config: cfg,
		logger: logger.Named("mongodb"),
		stop:   make(chan bool, 1),
	}, nil
}

// PID is an accessor for the handler's process id.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// StopProcess terminates the archive loop.
func (h *Handler) StopProcess() {
	h.stop <- true
}

// Process connects to the archive database and drains the inbox until
// stopped. Connection failures end the loop; the session is never blocked on
// its archive.
func (h *Handler) Process(ctx context.Context) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.URI))
	if err != nil {
		h.logger.Error("connect failed", zap.Error(err))
		return
	}
	defer client.Disconnect(ctx)

	db := client.Database(h.config.Database)
	upsert := options.Update().SetUpsert(true)

loop:
	for {
		select {
		case m := <-h.inbox:
			collection, key, doc := document(m)
			if collection == "" {
				continue
			}
			_, err := db.Collection(collection).UpdateOne(ctx, key, doc, upsert)
			if err != nil {
				h.logger.Error("upsert failed",
					zap.String("collection", collection),
					zap.Error(err))
			}
		case <-h.stop:
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	h.logger.Info("archive loop stopped")
}

func document(m msg.Msg) (collection string, key bson.M, doc bson.D) {
	switch m.Topic() {
	case msg.Stage:
		st, ok := m.Payload().(stage.Stage)
		if !ok {
			return "", nil, nil
		}
		return "stageHistory",
			bson.M{"session": m.PID().String(), "seq": st.Seq},
			bson.D{{Key: "$set", Value: bson.M{
				"session": m.PID().String(),
				"seq":     st.Seq,
				"name":    st.Name,
				"kind":    string(st.Kind),
				"count":   st.Count,
				"at":      st.At,
			}}}
	case msg.Balance:
		return "balanceSnapshots",
			bson.M{"session": m.PID().String()},
			bson.D{{Key: "$set", Value: bson.M{
				"session":  m.PID().String(),
				"snapshot": m.Payload(),
			}}}
	case msg.Result:
		return "optimizationResults",
			bson.M{"session": m.PID().String()},
			bson.D{{Key: "$set", Value: bson.M{
				"session": m.PID().String(),
				"result":  m.Payload(),
			}}}
	}
	return "", nil, nil
}

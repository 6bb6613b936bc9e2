package db

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"pressfeed/models"
)

// Writer drains engagement and retraction events onto disk so the request
// path never blocks on SQLite. Index bookkeeping happens synchronously in the
// routing layer; this loop only makes it durable.
type Writer struct {
	db        *DB
	events    chan interface{}
	tidyChan  *time.Ticker
	retention time.Duration

	// Evicted is called for every post removed by the periodic tidy pass so
	// the owner can retract it from the tag index as well.
	Evicted func(postId int64)
}

func NewWriter(db *DB, events chan interface{}, retention time.Duration) *Writer {
	return &Writer{
		db:        db,
		events:    events,
		retention: retention,
		// Tidy the database every 30 minutes
		tidyChan: time.NewTicker(30 * time.Minute),
	}
}

// Run consumes events until the context is cancelled.
func (writer *Writer) Run(ctx context.Context) {
	// Tidy database immediately
	writer.tidy(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Writer shutting down")
			return

		case <-writer.tidyChan.C:
			writer.tidy(ctx)

		case event := <-writer.events:
			switch event := event.(type) {
			case models.LikePostEvent:
				if err := writer.db.LikePost(ctx, event.PostId, event.Delta); err != nil {
					log.WithFields(log.Fields{"post": event.PostId, "error": err}).Error("Error persisting like")
				}
			case models.DeletePostEvent:
				if err := writer.db.DeletePost(ctx, event.PostId); err != nil {
					log.WithFields(log.Fields{"post": event.PostId, "error": err}).Error("Error persisting retraction")
				}
			default:
				log.Info("Unknown event type")
			}
		}
	}
}

func (writer *Writer) tidy(ctx context.Context) {
	if writer.retention <= 0 {
		return
	}

	log.Info("Tidying database")
	evicted, err := writer.db.Tidy(ctx, writer.retention)
	if err != nil {
		log.Error("Error tidying database ", err)
		return
	}
	if writer.Evicted != nil {
		for _, postId := range evicted {
			writer.Evicted(postId)
		}
	}
}

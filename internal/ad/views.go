package ad

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const viewBumpTimeout = 5 * time.Second

// viewCounter applies view-count increments off the request path.
// Failures are logged and dropped; a read never fails because its
// view could not be counted.
type viewCounter struct {
	store Store
	wg    sync.WaitGroup
}

func (v *viewCounter) bump(ids ...primitive.ObjectID) {
	if len(ids) == 0 {
		return
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), viewBumpTimeout)
		defer cancel()

		for _, id := range ids {
			if err := v.store.IncrementViews(ctx, id); err != nil {
				slog.Warn("failed to count ad view", "ad_id", id.Hex(), "error", err)
			}
		}
	}()
}

func (v *viewCounter) wait() {
	v.wg.Wait()
}

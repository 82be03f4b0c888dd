package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
)

// Sweeper reclaims expired carts. Expiry is already enforced lazily on
// every cart write; the sweep keeps "available now" displays honest.
type Sweeper struct {
	DB        *pgxpool.Pool
	Publisher fanout.Publisher
	Producer  string
	Interval  time.Duration
	Log       *zap.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.sweep(ctx); err != nil {
				s.Log.Warn("cart sweep", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	rows, err := s.DB.Query(ctx, `
		DELETE FROM carts WHERE expires_at < now()
		RETURNING user_id, store_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type swept struct{ userID, storeID string }
	var all []swept
	for rows.Next() {
		var x swept
		if err := rows.Scan(&x.userID, &x.storeID); err != nil {
			return err
		}
		all = append(all, x)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range all {
		s.Publisher.Publish(ctx, events.New(events.TypeCartExpired, x.storeID, s.Producer,
			events.CartExpiredPayload{UserID: x.userID}))
	}
	if len(all) > 0 {
		s.Log.Info("swept expired carts", zap.Int("count", len(all)))
	}
	return nil
}

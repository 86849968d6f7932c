package sweeper

import (
	"database/sql"
	"log"
	"time"

	"github.com/trimrr/trimr/internal/metrics"
	"github.com/trimrr/trimr/internal/models"
)

// Sweeper physically removes expired links (and their click history) on
// an interval. The sweep is a hygiene job, not a gate: the resolver
// re-validates expiry live, so a row the sweep has not reached yet is
// still denied.
type Sweeper struct {
	db       *sql.DB
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func New(db *sql.DB, interval time.Duration) *Sweeper {
	s := &Sweeper{
		db:       db,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Shutdown runs a final sweep and waits for the loop to exit.
func (s *Sweeper) Shutdown() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			s.sweep()
			return
		}
	}
}

func (s *Sweeper) sweep() {
	n, err := models.PurgeExpired(s.db, time.Now().UTC())
	if err != nil {
		log.Printf("sweeper: purge error: %v", err)
		return
	}
	if n > 0 {
		metrics.ExpiredPurgedTotal.Add(float64(n))
		log.Printf("sweeper: purged %d expired links", n)
	}
}

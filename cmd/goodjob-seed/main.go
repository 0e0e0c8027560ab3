// goodjob-seed inserts a handful of demo jobs into the local dev database,
// covering every demo handler registered by cmd/goodjobd (six jobs; EchoJob
// and FlakyJob appear twice), so a freshly installed schema has something
// to watch move through the queue. Grounded on the teacher's
// cmd/seed/main.go: a summary printed to stdout, no dependency beyond the
// store itself. Each run inserts a fresh set of rows with new external job
// ids; nothing is deduplicated.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pgjobs/goodjob/internal/domain"
	"github.com/pgjobs/goodjob/internal/infrastructure/postgres"
	"github.com/pgjobs/goodjob/internal/wire"
)

type jobSpec struct {
	class     string
	queueName string
	priority  int32
}

var jobs = []jobSpec{
	{"EchoJob", "default", 0},
	{"EchoJob", "default", 0},
	{"FlakyJob", "default", 0},
	{"FlakyJob", "low", 10},
	{"SlowJob", "default", 0},
	{"DiscardingJob", "default", 0},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewJobStore(pool, slog.Default())

	var inserted int
	var ids []int64

	for _, spec := range jobs {
		jobID := uuid.NewString()
		payload, err := wire.Encode(&wire.Payload{
			JobClass:   spec.class,
			JobID:      jobID,
			QueueName:  spec.queueName,
			Priority:   spec.priority,
			Arguments:  nil,
			Executions: 0,
		})
		if err != nil {
			log.Fatalf("encode payload for %s: %v", spec.class, err)
		}

		priority := spec.priority
		created, err := store.Enqueue(ctx, &domain.Job{
			ExternalJobID: jobID,
			JobClass:      spec.class,
			QueueName:     spec.queueName,
			Priority:      &priority,
			Payload:       payload,
			ScheduledAt:   timePtr(time.Now()),
		})
		if err != nil {
			log.Fatalf("enqueue %s: %v", spec.class, err)
		}
		inserted++
		ids = append(ids, created.ID)
	}

	fmt.Println("Seed complete")
	fmt.Printf("  Jobs created: %d\n", inserted)
	fmt.Println("  Job ids:")
	for _, id := range ids {
		fmt.Printf("    %d\n", id)
	}
	fmt.Println()
	fmt.Println("Run goodjobd with QUEUES=* to watch them execute.")
}

func timePtr(t time.Time) *time.Time { return &t }

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"classnotify/internal/attendance"
	"classnotify/internal/config"
	"classnotify/internal/decision"
	"classnotify/internal/notify"
	"classnotify/internal/queue"
	"classnotify/internal/reminder"
	"classnotify/internal/roster"
	"classnotify/internal/store"
)

// Worker runs the per-minute class reminder tick and consumes delayed
// decision tasks. Each tick and each task is an independent unit of work; a
// failure is logged and the loop keeps going.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var tasks queue.Queue
	if cfg.QueueBackend == "memory" {
		tasks = queue.NewInMemory(64)
	} else {
		tasks = queue.NewRedisQueue(redisClient.Client, "classnotify:decision-tasks")
	}

	zone := cfg.Location()
	writer := notify.NewWriter(notify.NewRepository(db.Client))
	rosterRepo := roster.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)

	reminders := reminder.New(rosterRepo, rosterRepo, writer, zone, cfg.ReminderLookaheadMin)
	workflow := decision.New(records, rosterRepo, rosterRepo, writer, tasks, zone, decision.Config{
		InitialDelay: cfg.DecisionInitialDelay,
		RetryDelay:   cfg.DecisionRetryDelay,
		MaxAttempts:  cfg.DecisionMaxAttempts,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runReminderLoop(ctx, reminders, zone)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runDecisionLoop(ctx, tasks, workflow)
	}()

	log.Println("worker started")
	wg.Wait()
	log.Println("worker stopped")
}

// runReminderLoop fires the reminder evaluator once per wall-clock minute.
func runReminderLoop(ctx context.Context, reminders *reminder.Evaluator, zone *time.Location) {
	for {
		next := time.Now().Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		now := time.Now().In(zone)
		if err := reminders.Run(ctx, now); err != nil {
			log.Printf("reminder run failed: %v", err)
		}
	}
}

func runDecisionLoop(ctx context.Context, tasks queue.Queue, workflow *decision.Workflow) {
	deliveries, err := tasks.Consume(ctx)
	if err != nil {
		log.Printf("queue consume init failed: %v", err)
		return
	}
	for task := range deliveries {
		log.Printf("processing decision task record=%s attempt=%d", task.RecordID, task.Attempt)
		if err := workflow.Execute(ctx, task); err != nil {
			log.Printf("decision task failed for record %s: %v", task.RecordID, err)
		}
	}
}

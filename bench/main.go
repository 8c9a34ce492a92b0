package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/backend/mysql"
	"github.com/cschleiden/go-workflow-tasks/backend/redis"
	"github.com/cschleiden/go-workflow-tasks/backend/sqlite"
	mi "github.com/cschleiden/go-workflow-tasks/internal/metrics"
	redisv9 "github.com/redis/go-redis/v9"
)

var b = flag.String("backend", "sqlite", "Backend to use. Supported backends are:\n- memory\n- sqlite\n- mysql\n- redis\n")
var timeout = flag.Duration("timeout", time.Second*30, "Timeout for the benchmark run")
var tasks = flag.Int("tasks", 1000, "Number of tasks to create and complete")
var instances = flag.Int("instances", 10, "Number of workflow instances the tasks are spread over")
var numRoles = flag.Int("roles", 4, "Number of roles the tasks are pooled to")
var workers = flag.Int("workers", 8, "Number of concurrent workers")
var batch = flag.Int("batch", 100, "Number of tasks created per session while seeding")
var format = flag.String("format", "text", "Output format. Supported formats are:\n- text\n- csv\n")

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mm := mi.NewMemoryMetricsClient()
	ba := getBackend(*b, backend.WithLogger(slog.New(slog.DiscardHandler)), backend.WithMetrics(mm))
	defer ba.Close()

	r, err := run(ctx, ba, scenario{
		Tasks:     *tasks,
		Instances: *instances,
		Roles:     *numRoles,
		Workers:   *workers,
		BatchSize: *batch,
	})
	if err != nil {
		log.Fatal(err)
	}

	switch *format {
	case "text":
		log.Println("Seeded", *tasks, "tasks in", r.Seed.Seconds(), "seconds")
		log.Println("Completed", r.Completed, "tasks in", r.Work.Seconds(), "seconds with", r.Retries, "retries")
		printCounters(os.Stdout, mm.Counters())

	case "csv":
		fmt.Printf(
			"%s,%d,%d,%d,%d,%v,%v,%d\n",
			*b, *tasks, *instances, *numRoles, *workers, r.Seed.Seconds(), r.Work.Seconds(), r.Retries)
	}
}

func getBackend(b string, opt ...backend.BackendOption) store {
	switch b {
	case "memory":
		return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opt...))

	case "sqlite":
		os.Remove("bench.sqlite")

		return sqlite.NewSqliteBackend("bench.sqlite", sqlite.WithBackendOptions(opt...))

	case "mysql":
		db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@/?parseTime=true&interpolateParams=true", "root", "root"))
		if err != nil {
			panic(err)
		}

		if _, err := db.Exec("DROP DATABASE IF EXISTS bench"); err != nil {
			panic(fmt.Errorf("dropping database: %w", err))
		}

		if _, err := db.Exec("CREATE DATABASE bench"); err != nil {
			panic(fmt.Errorf("creating database: %w", err))
		}

		if err := db.Close(); err != nil {
			panic(err)
		}

		return mysql.NewMysqlBackend("localhost", 3306, "root", "root", "bench", mysql.WithBackendOptions(opt...))

	case "redis":
		rclient := redisv9.NewUniversalClient(&redisv9.UniversalOptions{
			Addrs:        []string{"localhost:6379"},
			Username:     "",
			Password:     "RedisPassw0rd",
			DB:           0,
			WriteTimeout: time.Second * 30,
			ReadTimeout:  time.Second * 30,
		})

		rclient.FlushAll(context.Background()).Result()

		b, err := redis.NewRedisBackend(rclient, redis.WithBackendOptions(opt...))
		if err != nil {
			panic(err)
		}

		return b

	default:
		panic("unknown backend " + b)
	}
}

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

// TestMain uses TEST_DATABASE_URL when set, otherwise it runs a throwaway
// postgres container on a free host port.
func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	stop := func() {}
	if dsn == "" {
		var err error
		dsn, stop, err = startContainer()
		if err != nil {
			log.Fatalf("postgres container: %v (is Docker running?)", err)
		}
	}

	pool, err := waitReady(ctx, dsn, 20, time.Second)
	if err != nil {
		stop()
		log.Fatalf("postgres not ready: %v", err)
	}
	testPool = pool

	if err := NewKVStore(testPool, nil).EnsureSchema(ctx); err != nil {
		stop()
		log.Fatalf("schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	stop()
	os.Exit(code)
}

func startContainer() (string, func(), error) {
	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_DB=chat",
		"-e", "POSTGRES_USER=chat",
		"-e", "POSTGRES_PASSWORD=chat",
		"postgres:16-alpine",
	).Output()
	if err != nil {
		return "", nil, err
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "stop", id).Run() }

	port, err := exec.Command("docker", "port", id, "5432/tcp").Output()
	if err != nil {
		stop()
		return "", nil, err
	}
	// "127.0.0.1:49153"
	hostPort := strings.TrimSpace(strings.SplitN(string(port), "\n", 2)[0])
	return fmt.Sprintf("postgres://chat:chat@%s/chat?sslmode=disable", hostPort), stop, nil
}

func waitReady(ctx context.Context, dsn string, attempts int, every time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		pool, err := NewPgxPool(ctx, dsn, 4)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		time.Sleep(every)
	}
	return nil, lastErr
}

func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE chat_kv`); err != nil {
		t.Fatalf("truncate chat_kv: %v", err)
	}
}

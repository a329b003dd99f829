//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/config"
	"github.com/weatherkeep/apiserver/internal/db"
	"github.com/weatherkeep/apiserver/internal/server"
	"github.com/weatherkeep/apiserver/types"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres", "rabbitmq", "minio"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	provider := httptest.NewServer(http.HandlerFunc(fakeProvider))
	cfg.Weather.BaseURL = provider.URL

	srvCtx, stop := context.WithCancel(context.Background())
	done, err := startServer(srvCtx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		stop()
		provider.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		stop()
		<-done
		provider.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	stop()
	<-done
	provider.Close()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestSaveWeatherLifecycle(t *testing.T) {
	username := fmt.Sprintf("alice_%d", time.Now().UnixNano())

	token, err := registerAndLogin(t, username, "testpass123!")
	if err != nil {
		t.Fatalf("register and login: %v", err)
	}

	status, body, err := doJSON(http.MethodGet, "/weather/London", "", nil)
	if err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("get weather status %d: %s", status, body)
	}
	var current struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &current); err != nil {
		t.Fatalf("decode weather: %v", err)
	}
	if current.Name != "London" {
		t.Fatalf("unexpected city name: %q", current.Name)
	}

	status, body, err = doJSON(http.MethodPost, "/save-weather", token, map[string]string{"city": "london"})
	if err != nil {
		t.Fatalf("save weather: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("save weather status %d: %s", status, body)
	}

	records, err := savedWeather(token)
	if err != nil {
		t.Fatalf("saved weather: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].City != "London" || records[0].Temperature != 11.3 {
		t.Fatalf("unexpected record: %+v", records[0])
	}

	status, body, err = doJSON(http.MethodPost, "/save-weather", token, map[string]string{"city": "Atlantis"})
	if err != nil {
		t.Fatalf("save unknown city: %v", err)
	}
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unknown city, got %d: %s", status, body)
	}

	records, err = savedWeather(token)
	if err != nil {
		t.Fatalf("saved weather: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("failed save must not append, got %d records", len(records))
	}
}

func TestConcurrentSavesAreNotLost(t *testing.T) {
	username := fmt.Sprintf("bob_%d", time.Now().UnixNano())

	token, err := registerAndLogin(t, username, "testpass123!")
	if err != nil {
		t.Fatalf("register and login: %v", err)
	}

	const saves = 20
	var wg sync.WaitGroup
	errs := make(chan error, saves)
	for i := 0; i < saves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body, err := doJSON(http.MethodPost, "/save-weather", token, map[string]string{"city": "London"})
			if err != nil {
				errs <- err
				return
			}
			if status != http.StatusOK {
				errs <- fmt.Errorf("status %d: %s", status, body)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent save: %v", err)
	}

	records, err := savedWeather(token)
	if err != nil {
		t.Fatalf("saved weather: %v", err)
	}
	if len(records) != saves {
		t.Fatalf("expected %d records, got %d", saves, len(records))
	}
}

func TestDuplicateRegistration(t *testing.T) {
	username := fmt.Sprintf("carol_%d", time.Now().UnixNano())
	creds := map[string]string{"username": username, "password": "pw"}

	status, body, err := doJSON(http.MethodPost, "/register", "", creds)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("first register: status %d err %v body %s", status, err, body)
	}

	status, body, err = doJSON(http.MethodPost, "/register", "", creds)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate username, got %d: %s", status, body)
	}
}

func fakeProvider(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("q"), "london") {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"weather":[{"description":"light rain"}],"main":{"temp":11.3},"name":"London","cod":200}`))
}

func registerAndLogin(t *testing.T, username, password string) (string, error) {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}
	status, body, err := doJSON(http.MethodPost, "/register", "", creds)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register status %d: %s", status, body)
	}

	status, body, err = doJSON(http.MethodPost, "/login", "", creds)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login status %d: %s", status, body)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func savedWeather(token string) ([]types.WeatherRecord, error) {
	status, body, err := doJSON(http.MethodGet, "/saved-weather", token, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("saved weather status %d: %s", status, body)
	}
	var records []types.WeatherRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func doJSON(method, path, token string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, bytes.TrimSpace(body), nil
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("OPENWEATHERMAP_API_KEY", "test-key")
	_ = os.Setenv("PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_BACKEND", config.StoreBackendPostgres)
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "weatherkeep")
	_ = os.Setenv("DB_PASSWORD", "weatherkeep")
	_ = os.Setenv("DB_NAME", "weatherkeep")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MQ_BACKEND", config.MQBackendRabbitMQ)
	_ = os.Setenv("STORAGE_BACKEND", config.StorageBackendMinio)
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "weatherkeep")
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context, cfg config.Config) (<-chan struct{}, error) {
	srv, err := server.New(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Start(ctx)
	}()
	return done, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

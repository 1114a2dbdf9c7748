package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brody/brody-back/internal/auth"
	httpserver "github.com/brody/brody-back/internal/http"
	"github.com/brody/brody-back/internal/http/handlers"
	"github.com/brody/brody-back/internal/metrics"
	"github.com/brody/brody-back/internal/queue"
	"github.com/brody/brody-back/internal/repository"
	"github.com/brody/brody-back/internal/service"
	"github.com/brody/brody-back/internal/worker"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type scenarioSizes struct {
	classifyTotal       int
	classifyConcurrency int
	triageTotal         int
	triageConcurrency   int
	listTotal           int
	listConcurrency     int
	prepareTotal        int
	prepareConcurrency  int
}

func main() {
	var (
		sizes      scenarioSizes
		target     string
		outputPath string
	)
	cmd := &cobra.Command{
		Use:          "brody-loadtest",
		Short:        "Benchmark the Brody API endpoints",
		Long:         "Runs concurrent request scenarios against an in-process API (default) or a running server given by --target.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, sizes, target, outputPath)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&sizes.classifyTotal, "classify-total", 260, "total classify-email requests")
	flags.IntVar(&sizes.classifyConcurrency, "classify-concurrency", 24, "concurrency for classify-email requests")
	flags.IntVar(&sizes.triageTotal, "triage-total", 180, "total triage job enqueue requests")
	flags.IntVar(&sizes.triageConcurrency, "triage-concurrency", 28, "concurrency for triage job enqueue requests")
	flags.IntVar(&sizes.listTotal, "list-total", 120, "total triage job list requests")
	flags.IntVar(&sizes.listConcurrency, "list-concurrency", 20, "concurrency for triage job list requests")
	flags.IntVar(&sizes.prepareTotal, "prepare-total", 80, "total prepare-day requests")
	flags.IntVar(&sizes.prepareConcurrency, "prepare-concurrency", 16, "concurrency for prepare-day requests")
	flags.StringVar(&target, "target", "", "base URL of a running API; empty starts one in-process")
	flags.StringVar(&outputPath, "output", "", "optional path to persist benchmark results JSON")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, sizes scenarioSizes, target, outputPath string) error {
	environment := "remote"
	if target == "" {
		server, cancel, err := startBenchmarkEnvironment()
		if err != nil {
			return fmt.Errorf("start local benchmark environment: %w", err)
		}
		defer cancel()
		target = server.URL
		environment = "local-httptest"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	token, err := registerBenchmarkUser(client, target)
	if err != nil {
		return fmt.Errorf("register benchmark user: %w", err)
	}
	authHeaders := map[string]string{"Authorization": "Bearer " + token}
	var idCounter int64

	classifyScenario := runScenario("classify_email_sync", sizes.classifyTotal, sizes.classifyConcurrency, func(index int) error {
		payload := map[string]any{
			"id":      fmt.Sprintf("bench-%d", index),
			"subject": benchmarkSubject(index),
			"body":    "Quarterly numbers are attached. Please review before Friday.",
			"sender":  fmt.Sprintf("sender-%d@example.com", index%32),
		}
		return postJSON(client, target+"/api/classify-email", payload, nil, http.StatusOK)
	})

	triageScenario := runScenario("triage_jobs_enqueue", sizes.triageTotal, sizes.triageConcurrency, func(index int) error {
		requestID := atomic.AddInt64(&idCounter, 1)
		payload := map[string]any{
			"emails": []map[string]any{
				{"id": fmt.Sprintf("t-%d-a", index), "subject": benchmarkSubject(index)},
				{"id": fmt.Sprintf("t-%d-b", index), "subject": benchmarkSubject(index + 1)},
			},
			"suggest_tasks": index%2 == 0,
		}
		headers := map[string]string{
			"Authorization":   authHeaders["Authorization"],
			"Idempotency-Key": fmt.Sprintf("triage-%d-%d", requestID, time.Now().UnixNano()),
		}
		return postJSON(client, target+"/api/triage-jobs", payload, headers, http.StatusAccepted)
	})

	listScenario := runScenario("triage_jobs_list", sizes.listTotal, sizes.listConcurrency, func(index int) error {
		query := fmt.Sprintf("%s/api/triage-jobs?page=%d&page_size=20", target, (index%6)+1)
		return getJSON(client, query, authHeaders, http.StatusOK)
	})

	prepareScenario := runScenario("prepare_day", sizes.prepareTotal, sizes.prepareConcurrency, func(int) error {
		return getJSON(client, target+"/api/prepare-day", nil, http.StatusOK)
	})

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    environment,
		Results:        []scenarioResult{classifyScenario, triageScenario, listScenario, prepareScenario},
		SLOEvaluation: map[string]bool{
			"classify_email_p95_le_2000ms": classifyScenario.P95MS <= 2000,
			"triage_enqueue_p95_le_500ms":  triageScenario.P95MS <= 500,
		},
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal benchmark report: %w", err)
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

func benchmarkSubject(index int) string {
	subjects := []string{
		"URGENT: contract renewal",
		"FYI: office closed Monday",
		"Quarterly planning",
		"ASAP: production incident",
		"Optional: team lunch",
	}
	return subjects[index%len(subjects)]
}

// startBenchmarkEnvironment runs the API on memory stores and the local
// queue without an AI gateway, so only heuristic paths are measured.
func startBenchmarkEnvironment() (*httptest.Server, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	jobsRepo := repository.NewMemoryJobsRepository()
	users := repository.NewMemoryUsersRepository()
	localQueue := queue.NewLocalQueue(4096, 3, nil)

	tokens, err := auth.NewTokenIssuer(uuid.NewString(), 30*time.Minute, 24*time.Hour)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	triage := service.NewTriageService(service.TriageDependencies{})
	authService := service.NewAuthService(service.AuthDependencies{
		Users:    users,
		Sessions: repository.NewMemorySessionStore(),
		Tokens:   tokens,
	})
	api := handlers.NewAPI(handlers.Dependencies{
		Triage:      triage,
		Jobs:        service.NewJobsService(jobsRepo, localQueue),
		Auth:        authService,
		Preferences: service.NewPreferencesService(users, nil),
	})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Authenticator:  authService,
		Metrics:        metrics.New(),
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	processor := worker.NewProcessor(worker.ProcessorDependencies{
		Consumer: localQueue,
		Repo:     jobsRepo,
		Triage:   triage,
	})
	go processor.Start(ctx)

	server := httptest.NewServer(router)
	return server, func() {
		cancel()
		server.Close()
	}, nil
}

func registerBenchmarkUser(client *http.Client, baseURL string) (string, error) {
	payload := map[string]any{
		"name":     "Load Test",
		"email":    fmt.Sprintf("load-%s@example.com", uuid.NewString()[:8]),
		"password": uuid.NewString(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	response, err := client.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return "", fmt.Errorf("unexpected status %d: %s", response.StatusCode, string(body))
	}

	var decoded struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode register response: %w", err)
	}
	return decoded.Token.AccessToken, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
	expectedStatus int,
) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	return send(client, request, headers, expectedStatus)
}

func getJSON(client *http.Client, url string, headers map[string]string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	return send(client, request, headers, expectedStatus)
}

func send(client *http.Client, request *http.Request, headers map[string]string, expectedStatus int) error {
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Command benchmark load-tests the gateway against a fake Anthropic upstream.
//
//	go run ./cmd/benchmark -rate 100 -duration 30s -stream
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	upstreamPort = 9091
	gatewayPort  = 8081
	debugAddr    = "127.0.0.1:6060"
	gatewayKey   = "bench-key-12345"
	configFile   = "bench_config.yaml"
)

var gatewayURL = fmt.Sprintf("http://localhost:%d/api/ai-sdk", gatewayPort)

// Anthropic Messages API fixtures.
var (
	deltas = []string{"Bench", "mark", " safe", " response"}

	messageStart = sseEvent("message_start", `{"type":"message_start","message":{"id":"msg_bench"}}`)
	messageEnd   = sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`) +
		sseEvent("message_stop", `{"type":"message_stop"}`)
	unaryBody = `{"id":"msg_bench","type":"message","role":"assistant","content":[{"type":"text","text":"Hello"}],"stop_reason":"end_turn"}`
)

func sseEvent(name, data string) string {
	return "event: " + name + "\ndata: " + data + "\n\n"
}

func textDelta(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]string{"type": "text_delta", "text": text},
	})
	return sseEvent("content_block_delta", string(payload))
}

func main() {
	duration := flag.Duration("duration", 10*time.Second, "how long to attack")
	rate := flag.Int("rate", 50, "requests per second")
	stream := flag.Bool("stream", false, "attack /ask-stream instead of /ask")
	chaos := flag.Bool("chaos", false, "abort random /chat streams alongside the attack")
	flag.Parse()

	go serveUpstream()

	server, err := startGateway()
	if err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
	defer server.stop()

	if err := waitHealthy(gatewayHealthURL(), 10*time.Second); err != nil {
		server.stop()
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		// give the debug listener a moment
		time.Sleep(2 * time.Second)
		sampleResources(server.cmd.Process.Pid, done)
	}()

	if *chaos {
		go chaosMonkey(min(max(*rate/10, 5), 50), done)
	}

	endpoint := gatewayURL + "/ask"
	if *stream {
		endpoint += "-stream"
	}
	fmt.Printf("Attacking %s: %s at %d req/s\n", endpoint, *duration, *rate)

	metrics := attack(endpoint, *rate, *duration)
	close(done)
	report(metrics)
}

func gatewayHealthURL() string {
	return fmt.Sprintf("http://localhost:%d/health", gatewayPort)
}

type gatewayProcess struct {
	cmd     *exec.Cmd
	logFile *os.File
}

// startGateway builds cmd/server and runs it with a config pointing at the
// fake upstream.
func startGateway() (*gatewayProcess, error) {
	fmt.Println("Building gateway...")
	build := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	build.Stdout, build.Stderr = os.Stdout, os.Stderr
	if err := build.Run(); err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(benchConfig()), 0o644); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	logFile, err := os.Create("bench_server.log")
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(), "CONFIG_FILE="+configFile, "LOG_LEVEL=error", "NO_COLOR=1")
	cmd.Stdout, cmd.Stderr = logFile, logFile

	fmt.Println("Starting gateway...")
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, err
	}
	return &gatewayProcess{cmd: cmd, logFile: logFile}, nil
}

func (g *gatewayProcess) stop() {
	if g.cmd.Process != nil {
		_ = g.cmd.Process.Kill()
		_, _ = g.cmd.Process.Wait()
	}
	_ = g.logFile.Close()
	_ = os.Remove(configFile)
}

func attack(endpoint string, rate int, duration time.Duration) vegeta.Metrics {
	body := []byte(`{"prompt": "Hello"}`)
	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = endpoint
		t.Body = body
		t.Header = http.Header{
			"Content-Type":      {"application/json"},
			"Authorization":     {"Bearer " + gatewayKey},
			"X-Benchmark-Start": {strconv.FormatInt(time.Now().UnixNano(), 10)},
		}
		return nil
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var m vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: rate, Per: time.Second}, duration, "gateway") {
		m.Add(res)
	}
	m.Close()
	return m
}

func report(m vegeta.Metrics) {
	line := strings.Repeat("-", 50)
	fmt.Println(line)
	fmt.Printf("%-12s %s\n", "p50:", m.Latencies.P50)
	fmt.Printf("%-12s %s\n", "p99:", m.Latencies.P99)
	fmt.Printf("%-12s %s\n", "mean:", m.Latencies.Mean)
	fmt.Printf("%-12s %s\n", "max:", m.Latencies.Max)
	fmt.Printf("%-12s %.2f%%\n", "success:", m.Success*100)
	fmt.Printf("%-12s %.2f req/s\n", "throughput:", m.Throughput)
	fmt.Println(line)

	seen := make(map[string]struct{})
	for _, msg := range m.Errors {
		if len(seen) == 5 {
			break
		}
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		fmt.Println("error:", msg)
	}
}

// chaosMonkey opens /chat streams and abandons them after 1-200ms so the
// gateway's disconnect path runs under load.
func chaosMonkey(workers int, done <-chan struct{}) {
	fmt.Printf("Chaos monkey: %d workers aborting /chat streams\n", workers)

	client := &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 100}}
	payload := `{"messages":[{"role":"user","content":"Chaos Request"}]}`

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rand.IntN(200)+1)*time.Millisecond)
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, gatewayURL+"/chat", strings.NewReader(payload))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+gatewayKey)
				if resp, err := client.Do(req); err == nil {
					_ = resp.Body.Close()
				}
				cancel()

				time.Sleep(time.Duration(rand.IntN(50)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

// serveUpstream fakes POST /v1/messages in both unary and streaming modes.
func serveUpstream() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if start, err := strconv.ParseInt(r.Header.Get("X-Benchmark-Start"), 10, 64); err == nil && rand.IntN(100) == 0 {
			fmt.Printf("gateway overhead: %s\n", time.Duration(time.Now().UnixNano()-start))
		}

		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			time.Sleep(10 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(unaryBody))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		rc := http.NewResponseController(w)

		write := func(s string) bool {
			if _, err := w.Write([]byte(s)); err != nil {
				return false
			}
			return rc.Flush() == nil
		}

		if !write(messageStart) {
			return
		}
		for _, d := range deltas {
			time.Sleep(50 * time.Millisecond)
			if !write(textDelta(d)) {
				return
			}
		}
		write(messageEnd)
	})

	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", upstreamPort), mux))
}

// sampleResources prints heap (from expvar) and CPU (from ps) once a second.
func sampleResources(pid int, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("\n%-10s %-10s %-10s %-10s\n", "time", "heap(MB)", "alloc(MB)", "cpu(%)")

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		var vars struct {
			MemStats struct {
				HeapInuse uint64 `json:"HeapInuse"`
				Alloc     uint64 `json:"Alloc"`
			} `json:"memstats"`
		}
		resp, err := http.Get("http://" + debugAddr + "/debug/vars")
		if err != nil {
			fmt.Printf("expvar unavailable: %v\n", err)
			continue
		}
		err = json.NewDecoder(resp.Body).Decode(&vars)
		_ = resp.Body.Close()
		if err != nil {
			continue
		}

		fmt.Printf("%-10s %-10.2f %-10.2f %-10.2f\n",
			time.Now().Format(time.TimeOnly),
			float64(vars.MemStats.HeapInuse)/(1<<20),
			float64(vars.MemStats.Alloc)/(1<<20),
			cpuPercent(pid),
		)
	}
}

func cpuPercent(pid int) float64 {
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "%cpu=").Output()
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	return v
}

func waitHealthy(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("gateway not healthy after %s", timeout)
}

func benchConfig() string {
	return fmt.Sprintf(`
server:
  port: "%d"
  env: development
  api_keys: ["%s"]
  debug_addr: "%s"
log:
  level: error
  format: json
ai:
  provider: anthropic
  api_key: mock-key
  chat_model: claude-3-5-haiku-20241022
  base_url: http://localhost:%d/v1
`, gatewayPort, gatewayKey, debugAddr, upstreamPort)
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/hamed0406/turnprobe/internal/snapshot"
)

// Exit codes: 0 server OK, 1 server not OK, 2 no usable snapshot.
func main() {
	url := os.Getenv("METRICS_URL")
	if url == "" {
		url = "http://localhost:8080/metrics"
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Println("Invalid METRICS_URL:", err)
		os.Exit(2)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeOpenMetrics)))
	if tok := strings.TrimSpace(os.Getenv("METRICS_TOKEN")); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("Error contacting turnprobe:", err)
		os.Exit(2)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Println("No snapshot available, turnprobe returned:", resp.Status)
		os.Exit(2)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		fmt.Println("Error reading response:", err)
		os.Exit(2)
	}
	s, err := snapshot.Parse(body)
	if err != nil {
		fmt.Println("Unexpected response:", err)
		os.Exit(2)
	}

	age := time.Since(s.MeasuredAt).Round(time.Second)
	if s.OK {
		fmt.Printf("TURN server OK (measured %s, %s ago)\n", s.MeasuredAt.UTC().Format(time.RFC3339), age)
		return
	}
	fmt.Printf("TURN server NOT OK (measured %s, %s ago)\n", s.MeasuredAt.UTC().Format(time.RFC3339), age)
	os.Exit(1)
}

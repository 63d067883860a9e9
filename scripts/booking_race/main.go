// Command booking_race fires concurrent booking requests at a single
// slot of a running server and verifies that exactly one caller wins.
// It needs a JSON file with bearer tokens of students who all hold an
// accepted pairing with the slot's tutor.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type config struct {
	Tokens []string `json:"tokens"`
}

type attempt struct {
	Token    int
	Status   int
	Code     string
	Duration time.Duration
	Error    error
}

func main() {
	var (
		base       string
		slotID     string
		tokensPath string
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&slotID, "slot", "", "Slot ID to contend for")
	flag.StringVar(&tokensPath, "tokens", filepath.Join("scripts", "booking_race", "tokens.json"), "Path to JSON tokens file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if slotID == "" {
		log.Fatal("missing -slot")
	}

	tokens, err := loadTokens(tokensPath)
	if err != nil {
		log.Fatalf("failed to load tokens: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	results := make([]attempt, len(tokens))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			<-start
			results[i] = book(client, base, slotID, token)
			results[i].Token = i
		}(i, token)
	}
	close(start)
	wg.Wait()

	winners := printReport(results)

	fmt.Printf("Winners: %d of %d\n", winners, len(results))
	if winners != 1 {
		os.Exit(1)
	}
}

func loadTokens(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tokens) < 2 {
		return nil, fmt.Errorf("need at least two tokens in %s", path)
	}
	return cfg.Tokens, nil
}

func book(client *http.Client, base, slotID, token string) attempt {
	var res attempt

	payload, _ := json.Marshal(map[string]string{"slot_id": slotID})
	url := strings.TrimRight(base, "/") + "/api/v1/bookings"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	begin := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(begin)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
		res.Code = envelope.Error.Code
	}
	return res
}

func printReport(results []attempt) int {
	fmt.Println("Booking Race Report")
	fmt.Println("===================")
	winners := 0
	for _, res := range results {
		switch {
		case res.Error != nil:
			fmt.Printf("[ERROR] token %d: %v\n", res.Token, res.Error)
		case res.Status == http.StatusCreated:
			winners++
			fmt.Printf("[WIN]   token %d: %d (%s)\n", res.Token, res.Status, res.Duration)
		default:
			fmt.Printf("[LOSE]  token %d: %d %s (%s)\n", res.Token, res.Status, res.Code, res.Duration)
		}
	}
	return winners
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type candidate struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

type finalizeResult struct {
	Student struct {
		ID          string  `json:"id"`
		BalanceOwed float64 `json:"balance_owed"`
	} `json:"student"`
	Invoice struct {
		ID      string    `json:"id"`
		Amount  float64   `json:"amount"`
		DueDate time.Time `json:"due_date"`
	} `json:"invoice"`
}

// Drives one candidate through the full admission pipeline against a running
// server: register, advance to Offered, finalize, then confirm a second
// finalize is refused. Exits non-zero on the first mismatch.
func main() {
	var (
		baseURL string
		token   string
		timeout time.Duration
	)
	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("SMOKE_TOKEN"), "Bearer token for authenticated calls")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}

	registered := candidate{}
	payload := map[string]string{
		"full_name":        fmt.Sprintf("Smoke Candidate %d", time.Now().Unix()),
		"requested_level":  "Kindergarten",
		"guardian_contact": "smoke@example.com",
	}
	if err := call(client, token, http.MethodPost, baseURL+"/candidates", payload, http.StatusCreated, &registered); err != nil {
		log.Fatalf("register: %v", err)
	}
	log.Printf("registered candidate %s at stage %s", registered.ID, registered.Stage)

	current := registered
	for current.Stage != "OFFERED" {
		next := candidate{}
		if err := call(client, token, http.MethodPost, fmt.Sprintf("%s/candidates/%s/advance", baseURL, registered.ID), nil, http.StatusOK, &next); err != nil {
			log.Fatalf("advance from %s: %v", current.Stage, err)
		}
		log.Printf("advanced %s -> %s", current.Stage, next.Stage)
		current = next
	}

	result := finalizeResult{}
	if err := call(client, token, http.MethodPost, fmt.Sprintf("%s/candidates/%s/finalize", baseURL, registered.ID), nil, http.StatusCreated, &result); err != nil {
		log.Fatalf("finalize: %v", err)
	}
	log.Printf("enrolled student %s, invoice %s for %.2f due %s",
		result.Student.ID, result.Invoice.ID, result.Invoice.Amount, result.Invoice.DueDate.Format("2006-01-02"))

	err := call(client, token, http.MethodPost, fmt.Sprintf("%s/candidates/%s/finalize", baseURL, registered.ID), nil, http.StatusConflict, nil)
	if err != nil {
		log.Fatalf("repeat finalize should conflict: %v", err)
	}
	log.Printf("repeat finalize refused as expected")
	log.Printf("pipeline smoke passed")
}

func call(client *http.Client, token, method, url string, payload interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: got status %d want %d: %s", method, url, resp.StatusCode, wantStatus, raw)
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}

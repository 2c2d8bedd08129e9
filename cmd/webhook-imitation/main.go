package main

import (
	"bufio"
	"bytes"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/infrastructure/gateway"
)

const (
	concurrency    = 10
	jsonFilePath   = "internal/testdata/events.txt"
	targetURL      = "http://localhost:8080/stripe"
	requestTimeout = 5 * time.Second
)

// Replays gateway events from a file against the webhook endpoint, each one
// signed the way the provider would sign it. Dev/load tool only.
func main() {
	cfg := config.MustLoad()

	file, err := os.Open(jsonFilePath)
	if err != nil {
		log.Fatalf("failed to open file: %v", err)
	}
	defer closeFile(file)

	client := &http.Client{Timeout: requestTimeout}

	messageCh := make(chan []byte, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker(client, messageCh, &wg, cfg.Gateway.WebhookSecret)
	}

	processFile(file, messageCh)

	close(messageCh)
	wg.Wait()

	log.Println("event replay completed!")
}

func worker(client *http.Client, messageCh <-chan []byte, wg *sync.WaitGroup, secret string) {
	defer wg.Done()
	for msg := range messageCh {
		req, err := http.NewRequest(http.MethodPost, targetURL, bytes.NewReader(msg))
		if err != nil {
			log.Printf("failed to build request: %v", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(gateway.SignatureHeader, gateway.SignPayload(secret, time.Now(), msg))

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("delivery failed: %v", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			log.Printf("delivery rejected: %s", resp.Status)
		}
		_ = resp.Body.Close()
	}
}

func processFile(file *os.File, messageCh chan<- []byte) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		messageCh <- msg
	}
	if err := scanner.Err(); err != nil {
		log.Printf("failed to read file: %v", err)
	}
}

func closeFile(file *os.File) {
	if err := file.Close(); err != nil {
		log.Printf("failed to close file: %v", err)
	}
}

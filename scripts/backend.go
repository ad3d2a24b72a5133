// Backend is a simple fake downstream service used for manual gateway
// testing. It provides an echo endpoint and a /health endpoint.
//
// Usage:
//
//	go run backend.go -port 8000 -name auth
//
// The echo endpoint reports the method, path, and gateway headers it
// received, which makes it easy to verify header hygiene and forwarding
// by eye.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
)

// EchoResponse reports what the service received from the gateway.
type EchoResponse struct {
	Service       string `json:"service"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	Query         string `json:"query"`
	Body          string `json:"body"`
	ForwardedFor  string `json:"x_forwarded_for"`
	GatewaySecret string `json:"x_gateway_secret"`
	RequestID     string `json:"x_request_id"`
}

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	name := flag.String("name", "auth", "service name reported in responses")
	flag.Parse()

	mux := http.NewServeMux()

	// simple health endpoint used by the gateway health tracker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		// log request for visibility when running multiple services
		log.Printf("request: method=%s path=%s from=%s", r.Method, r.URL.Path, r.RemoteAddr)

		resp := EchoResponse{
			Service:       *name,
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Body:          string(body),
			ForwardedFor:  r.Header.Get("X-Forwarded-For"),
			GatewaySecret: r.Header.Get("X-Gateway-Secret"),
			RequestID:     r.Header.Get("X-Request-ID"),
		}

		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting %s service on %s", *name, addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

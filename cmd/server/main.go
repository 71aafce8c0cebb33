// Command server runs the platform's HTTP API.
package main

import (
	"log"

	"github.com/aidocs/platform/pkg/server"
)

func main() {
	srv, err := server.New()
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

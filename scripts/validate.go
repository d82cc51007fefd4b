package main

import (
	"flag"
	"os"

	"queuedesk/internal/logger"
	"queuedesk/internal/validation"
)

func main() {
	var baseURL, secret string
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the API")
	flag.Parse()

	logger.Init("info", "text")
	if err := validation.RunValidation(baseURL, secret); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
	logger.Get().Info("Validation passed")
}

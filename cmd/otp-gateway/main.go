package main

import (
	"github.com/sirupsen/logrus"

	"otp-gateway/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

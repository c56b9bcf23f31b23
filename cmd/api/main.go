package main

import (
	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("Service failed: %v", err)
	}
}

package main

import (
	"os"

	"github.com/soundprediction/controlgraph/cmd/controlgraph"
)

func main() {
	if err := controlgraph.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Fatalf("Error: %v", err)
	}
	atexit.Exit(0)
}

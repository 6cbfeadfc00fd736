package main

import (
	"fmt"
	"os"

	"github.com/feral-file/ff-marketplace-sync/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Flush(0)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Flush(0)
}

package main

import (
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
)

func init() {
	// the preview window and the tray both need the main OS thread
	runtime.LockOSThread()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

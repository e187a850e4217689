// cmd/ingest runs single uploads and embeds through the ingest pipeline
// without the NATS worker.
//
// Usage:
//
//	ingest upload photo.jpg --name holiday.jpg
//	ingest embed https://www.youtube.com/watch?v=abc
//	ingest probe clip.webm
//	ingest migrate [--down]
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

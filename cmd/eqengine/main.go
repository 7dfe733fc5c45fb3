// eqengine runs the virtual ten-band parametric equalizer as a standalone
// process: it captures from the audio graph's default source, applies the
// configured gains, and plays the result to a selected physical sink.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/config"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/engine"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph/malgoadapter"
)

func main() {
	flags, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Printf("EQ engine starting (rate=%d poll=%dms ring=%dframes)",
		flags.Engine.Rate, flags.Engine.PollMS, flags.Engine.RingFrames)

	eng := engine.New(newMalgoCore)
	if err := eng.Configure(flags.Engine); err != nil {
		log.Fatalf("Failed to configure engine: %v", err)
	}

	eng.SetMaster(flags.MasterGain)
	for band, gainDB := range flags.BandGains {
		if band >= 10 {
			break
		}
		if err := eng.SetBand(band, gainDB); err != nil {
			log.Printf("Warning: failed to set band %d gain: %v", band, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- eng.Start(ctx)
	}()

	log.Println("EQ engine running. Ctrl+C to quit.")

	select {
	case <-sigChan:
		log.Println("Shutting down...")
		eng.Stop()
	case err := <-done:
		if err != nil {
			log.Printf("Engine exited with error: %v", err)
		}
		return
	}

	select {
	case <-done:
		log.Println("Shutdown complete")
	case <-time.After(5 * time.Second):
		log.Println("Shutdown timeout, forcing exit")
	}

	if last := eng.LastError(); last != "" {
		log.Printf("Last recorded error: %s", last)
	}
	if dropped := eng.DroppedFrames(); dropped > 0 {
		log.Printf("Dropped %d frames over the engine's lifetime", dropped)
	}
}

func newMalgoCore() graph.Core {
	return malgoadapter.New()
}

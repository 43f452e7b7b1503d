package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/mailroom/core/actor"
)

// === Config ===

var (
	logLevel   = slog.LevelInfo
	N          = getEnvInt("N", 1_000_000)
	batchSize  = getEnvInt("B", 100_000)
	numActors  = getEnvInt("ACTORS", 64)
	producers  = getEnvInt("PRODUCERS", 8)
	workers    = getEnvInt("WORKERS", runtime.GOMAXPROCS(0))
	throughput = getEnvInt("THROUGHPUT", 0)
	limit      = getEnvInt("LIMIT", 1_000)
	useAsk     = getEnvBool("ASK", false)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "1" || strings.ToLower(v) == "true" {
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// === Domain ===

type (
	Add   struct{ N int }
	Total struct{}
)

func newCounter(processed *atomic.Int64) actor.Factory {
	return func() actor.Receiver {
		total := 0
		return actor.Match(
			actor.On[Add](func(mc actor.MessageContext, a Add) error {
				total += a.N
				processed.Add(1)
				if useAsk {
					return mc.Reply(total)
				}
				return nil
			}),
			actor.On[Total](func(mc actor.MessageContext, _ Total) error {
				return mc.Reply(total)
			}),
		)
	}
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	fmt.Printf("Messages:   %d\n", N)
	fmt.Printf("Actors:     %d\n", numActors)
	fmt.Printf("Producers:  %d\n", producers)
	fmt.Printf("Workers:    %d\n", workers)
	fmt.Printf("Throughput: %d\n", throughput)
	fmt.Printf("Limit:      %d\n", limit)
	fmt.Printf("Ask:        %s\n", strconv.FormatBool(useAsk))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	sys := actor.NewSystem(actor.Options{
		Context:    ctx,
		Logger:     log,
		Workers:    workers,
		Throughput: throughput,
	})

	var processed atomic.Int64
	for i := 0; i < numActors; i++ {
		_, err := sys.RegisterActor(fmt.Sprintf("counter-%d", i), newCounter(&processed), actor.DefaultSettings())
		checkErr(err)
	}

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	startAt := time.Now()

	var (
		wg   sync.WaitGroup
		sent atomic.Int64
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles := make([]*actor.Handle, numActors)
			for i := range handles {
				handles[i] = sys.GetActor(fmt.Sprintf("counter-%d", i))
			}
			for i := p; i < N; i += producers {
				h := handles[i%numActors]
				if useAsk {
					_, err := actor.Request[int](ctx, h, Add{N: 1})
					checkErr(err)
				} else {
					checkErr(h.TellWithBackPressure(ctx, Add{N: 1}, limit))
				}
				sent.Add(1)
			}
		}()
	}

	lastTime := time.Now()
	lastCount := int64(0)
	for int(processed.Load()) < N {
		time.Sleep(10 * time.Millisecond)
		c := processed.Load()
		if c-lastCount < int64(batchSize) && int(c) < N {
			continue
		}
		mu := getMemUsage()
		n := time.Now()
		took := n.Sub(lastTime)
		fmt.Printf(" | %8d msgs | %6d ms | %9d msgs/s | (%d / %d) MiB mem (sys) |\n", c-lastCount, took.Milliseconds(), int(float64(c-lastCount)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
		lastTime, lastCount = n, c
	}
	wg.Wait()

	total := 0
	for i := 0; i < numActors; i++ {
		v, err := actor.Request[int](ctx, sys.GetActor(fmt.Sprintf("counter-%d", i)), Total{})
		checkErr(err)
		total += v
	}

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	checkTrue(sys.ShutDownAndWaitTimeout(10*time.Second), "system did not terminate")
	runtime.GC()

	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("    delivered: %d / %d\n", total, sent.Load())
	fmt.Printf("  avg. msgs/s: %d\n", int(float64(N)/took.Seconds()))
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func checkTrue(ok bool, msg string) {
	if !ok {
		panic(msg)
	}
}

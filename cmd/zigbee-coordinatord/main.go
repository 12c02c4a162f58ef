package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarm/serial"

	"github.com/librescoot/zigbee-coordinator/pkg/driver"
	"github.com/librescoot/zigbee-coordinator/pkg/redis"
	"github.com/librescoot/zigbee-coordinator/pkg/redisbridge"
)

// Configuration flags
var (
	serialDevice   = flag.String("serial", "/dev/ttyUSB0", "Coordinator stick serial device path")
	baudRate       = flag.Int("baud", 38400, "Serial baud rate")
	readTimeout    = flag.Duration("read-timeout", 100*time.Millisecond, "Serial read timeout; also bounds shutdown latency")
	requestTimeout = flag.Duration("request-timeout", 500*time.Millisecond, "Per-request serial round-trip deadline")

	redisAddr = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting Zigbee coordinator daemon")
	log.Printf("Serial device: %s", *serialDevice)
	log.Printf("Baud rate: %d", *baudRate)
	log.Printf("Redis address: %s", *redisAddr)

	redisClient, err := redis.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Printf("Connected to Redis")

	config := &serial.Config{
		Name:        *serialDevice,
		Baud:        *baudRate,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: *readTimeout,
	}
	port, err := serial.OpenPort(config)
	if err != nil {
		log.Fatalf("Failed to open serial port %s: %v", *serialDevice, err)
	}
	log.Printf("Opened coordinator stick on %s", *serialDevice)

	drv := driver.New(port, log.Default(), *requestTimeout)
	defer drv.Close()

	bridge := redisbridge.New(drv, redisClient, log.Default())
	bridge.Run()
	defer bridge.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), *requestTimeout)
	version, platform, err := drv.Version(ctx)
	cancel()
	if err != nil {
		log.Printf("Warning: failed to read coordinator version: %v", err)
	} else {
		log.Printf("Coordinator firmware %s on %s", version, platform)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Printf("Shutting down...")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeolun/roomrelay/pkg/client"
	"github.com/aeolun/roomrelay/pkg/logx"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. Excepteur sint occaecat cupidatat non proident, sunt in culpa qui officia deserunt mollit anim id est laborum."

var loremWords = strings.Fields(strings.ToLower(strings.NewReplacer(",", "", ".", "").Replace(loremIpsum)))

// generateUsername combines fragments of two random words, e.g. "dolcupi"
func generateUsername(rng *rand.Rand) string {
	fragment := func() string {
		word := loremWords[rng.Intn(len(loremWords))]
		n := 3 + rng.Intn(4) // 3-6 chars
		if n > len(word) {
			n = len(word)
		}
		return word[:n]
	}
	return fragment() + fragment()
}

// randomMessage returns 5-20 lorem ipsum words
func randomMessage(rng *rand.Rand) []byte {
	wordCount := 5 + rng.Intn(16)
	words := make([]string, wordCount)
	for i := range words {
		words[i] = loremWords[rng.Intn(len(loremWords))]
	}
	return []byte(strings.Join(words, " "))
}

// Stats tracks performance metrics
type Stats struct {
	roomMessages      atomic.Int64
	privateMessages   atomic.Int64
	deliveries        atomic.Int64
	failures          atomic.Int64
	totalResponseTime atomic.Int64 // in microseconds
	connectionErrors  atomic.Int64
	timeouts          atomic.Int64
	disconnections    atomic.Int64
}

func (s *Stats) recordSuccess(private bool, responseTime time.Duration) {
	if private {
		s.privateMessages.Add(1)
	} else {
		s.roomMessages.Add(1)
	}
	s.totalResponseTime.Add(responseTime.Microseconds())
}

func (s *Stats) recordFailure(err error) {
	s.failures.Add(1)
	switch {
	case errors.Is(err, client.ErrTimeout):
		s.timeouts.Add(1)
	case errors.Is(err, client.ErrClosed):
		s.disconnections.Add(1)
	}
}

func (s *Stats) snapshot() (sent, failed, delivered int64, avgResponseUs float64) {
	sent = s.roomMessages.Load() + s.privateMessages.Load()
	failed = s.failures.Load()
	delivered = s.deliveries.Load()

	if sent > 0 {
		avgResponseUs = float64(s.totalResponseTime.Load()) / float64(sent)
	}
	return
}

// BotClient is a scripted chat user
type BotClient struct {
	id     int
	client *client.Client
	stats  *Stats
	rng    *rand.Rand
	room   string
	peers  []string
	logger zerolog.Logger
}

// NewBotClient connects, picks a name and joins one of rooms
func NewBotClient(id int, serverAddr string, rooms int, stats *Stats, logger zerolog.Logger) (*BotClient, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	c, err := client.Dial(serverAddr, client.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	bot := &BotClient{
		id:     id,
		client: c,
		stats:  stats,
		rng:    rng,
		room:   fmt.Sprintf("room-%d", rng.Intn(rooms)),
		logger: logger.With().Int("bot", id).Logger(),
	}
	go bot.drainDeliveries()

	if err := c.Nick(generateUsername(rng)); err != nil {
		c.Close()
		return nil, fmt.Errorf("nick: %w", err)
	}
	if err := c.Join(bot.room, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("join %s: %w", bot.room, err)
	}
	return bot, nil
}

func (bc *BotClient) drainDeliveries() {
	for range bc.client.Deliveries() {
		bc.stats.deliveries.Add(1)
	}
}

// refreshPeers reloads the names of the other users in the bot's room
func (bc *BotClient) refreshPeers() error {
	users, err := bc.client.ListUsers()
	if err != nil {
		return err
	}

	bc.peers = bc.peers[:0]
	for _, name := range users {
		if name != bc.client.Name() {
			bc.peers = append(bc.peers, name)
		}
	}
	return nil
}

// SendRandomMessage sends to the room, or privately to a peer 20% of the time
func (bc *BotClient) SendRandomMessage() error {
	body := randomMessage(bc.rng)
	private := len(bc.peers) > 0 && bc.rng.Float32() < 0.2

	start := time.Now()
	var err error
	if private {
		err = bc.client.SendPrivate(bc.peers[bc.rng.Intn(len(bc.peers))], body)
	} else {
		err = bc.client.SendRoom(bc.room, body)
	}

	var respErr *client.ResponseError
	switch {
	case err == nil:
		bc.stats.recordSuccess(private, time.Since(start))
	case errors.As(err, &respErr):
		// A peer may have renamed or left since the last refresh
		bc.stats.recordFailure(err)
		return nil
	default:
		bc.stats.recordFailure(err)
	}
	return err
}

// Run sends messages with random delays until ctx ends or the connection fails
func (bc *BotClient) Run(ctx context.Context, minDelay, maxDelay time.Duration) {
	defer bc.client.Close()

	for iteration := 0; ctx.Err() == nil; iteration++ {
		if iteration%5 == 0 {
			if err := bc.refreshPeers(); err != nil {
				bc.stats.recordFailure(err)
				return
			}
		}

		if err := bc.SendRandomMessage(); err != nil {
			bc.logger.Debug().Err(err).Msg("bot stopped")
			return
		}

		delay := minDelay
		if maxDelay > minDelay {
			delay += time.Duration(bc.rng.Int63n(int64(maxDelay - minDelay)))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
}

func main() {
	serverAddr := flag.String("server", "localhost:4117", "Server address (host:port or ws://host:port/ws)")
	numClients := flag.Int("clients", 10, "Number of concurrent clients")
	numRooms := flag.Int("rooms", 3, "Number of rooms the clients spread over")
	duration := flag.Duration("duration", 1*time.Minute, "Test duration")
	minDelay := flag.Duration("min-delay", 100*time.Millisecond, "Minimum delay between messages")
	maxDelay := flag.Duration("max-delay", 1*time.Second, "Maximum delay between messages")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *numClients < 1 || *numRooms < 1 {
		fmt.Fprintln(os.Stderr, "-clients and -rooms must be positive")
		os.Exit(2)
	}

	logx.Init(*debug)
	logger := logx.Component("loadtest")

	// Ramp up over 25% of the test duration
	rampUpDuration := *duration / 4
	staggerDelay := rampUpDuration / time.Duration(*numClients)
	if staggerDelay < time.Millisecond {
		staggerDelay = time.Millisecond
	}

	logger.Info().
		Str("server", *serverAddr).
		Int("clients", *numClients).
		Int("rooms", *numRooms).
		Dur("duration", *duration).
		Dur("ramp_up", rampUpDuration).
		Msg("starting load test")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info().Msg("shutdown signal received, stopping test")
			cancel()
		case <-ctx.Done():
		}
	}()

	stats := &Stats{}
	startTime := time.Now()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sent, failed, delivered, avgUs := stats.snapshot()
				logger.Info().
					Int64("sent", sent).
					Float64("rate", float64(sent)/time.Since(startTime).Seconds()).
					Int64("failed", failed).
					Int64("delivered", delivered).
					Int64("conn_errors", stats.connectionErrors.Load()).
					Float64("avg_ms", avgUs/1000).
					Msg("stats")
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
spawn:
	for i := 0; i < *numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			bot, err := NewBotClient(id, *serverAddr, *numRooms, stats, logger)
			if err != nil {
				stats.connectionErrors.Add(1)
				logger.Debug().Err(err).Int("bot", id).Msg("connect failed")
				return
			}
			if id%100 == 0 {
				logger.Info().Int("bot", id).Str("room", bot.room).Msg("connected")
			}
			bot.Run(ctx, *minDelay, *maxDelay)
		}(i)

		select {
		case <-time.After(staggerDelay):
		case <-ctx.Done():
			break spawn
		}
	}
	wg.Wait()

	sent, failed, delivered, avgUs := stats.snapshot()
	elapsed := time.Since(startTime)
	logger.Info().
		Dur("elapsed", elapsed).
		Int64("room_messages", stats.roomMessages.Load()).
		Int64("private_messages", stats.privateMessages.Load()).
		Float64("rate", float64(sent)/elapsed.Seconds()).
		Int64("failed", failed).
		Int64("timeouts", stats.timeouts.Load()).
		Int64("disconnections", stats.disconnections.Load()).
		Int64("delivered", delivered).
		Int64("conn_errors", stats.connectionErrors.Load()).
		Float64("avg_ms", avgUs/1000).
		Msg("final results")
}

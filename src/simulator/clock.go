package simulator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jpillora/backoff"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

type CommandType string

const (
	CommandStart       CommandType = "start"
	CommandUpdateSpeed CommandType = "update_speed"
	CommandStop        CommandType = "stop"
)

// Command is the only way the interactive lane talks to the simulation
// lane. Asset state crosses by value: the lane keeps its own copy.
type Command struct {
	Type            CommandType
	BaseVolatility  float64
	SpeedMultiplier float64
	Assets          []datamodels.AssetGenState
}

type EventType string

const (
	EventStarted EventType = "started"
	EventUpdate  EventType = "update"
	EventError   EventType = "error"
)

// Event is the only way the simulation lane talks back.
type Event struct {
	Type  EventType
	Batch *datamodels.TickBatch
	Err   error
}

const minTickInterval = 50 * time.Millisecond

// TickInterval maps a speed multiplier to the tick cadence:
// max(50ms, floor(1000/speed) ms).
func TickInterval(speedMultiplier float64) time.Duration {
	if speedMultiplier <= 0 {
		speedMultiplier = 1
	}
	interval := time.Duration(1000/speedMultiplier) * time.Millisecond
	if interval < minTickInterval {
		interval = minTickInterval
	}
	return interval
}

// Clock is the background simulation lane. It owns the per-asset generator
// state and shares nothing with its consumer beyond the two channels.
type Clock struct {
	commands chan Command
	events   chan Event
	seed     int64
}

func NewClock() *Clock {
	return &Clock{
		commands: make(chan Command, 16),
		events:   make(chan Event, 256),
		seed:     time.Now().UnixNano(),
	}
}

// WithSeed fixes the random source, which makes runs reproducible in tests.
func (c *Clock) WithSeed(seed int64) *Clock {
	c.seed = seed
	return c
}

func (c *Clock) Commands() chan<- Command {
	return c.commands
}

func (c *Clock) Events() <-chan Event {
	return c.events
}

// Start launches the lane under a supervisor: when the run loop fails it
// is restarted after a backoff delay with the configuration of the last
// successful start command, so accumulated price and momentum state
// survives the restart.
func (c *Clock) Start(ctx context.Context) {
	go c.supervise(ctx)
}

func (c *Clock) supervise(ctx context.Context) {
	retry := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var resume *Command

	for {
		lastStart, err := c.run(ctx, resume)
		if ctx.Err() != nil {
			slog.Info("Simulation lane shut down")
			return
		}
		if err == nil {
			// Explicit stop command.
			slog.Info("Simulation lane stopped")
			return
		}
		delay := retry.Duration()
		slog.Error("Simulation lane failed, restarting", "error", err, "delay", delay)
		c.emit(Event{Type: EventError, Err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		resume = lastStart
	}
}

// run is one incarnation of the lane. It returns the last start command so
// the supervisor can replay it, and a nil error only on an explicit stop.
func (c *Clock) run(ctx context.Context, resume *Command) (lastStart *Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrGeneratorFailure
			slog.Error("Simulation lane panic", "panic", r)
		}
	}()

	var (
		gen    *Generator
		states map[datamodels.Symbol]datamodels.AssetGenState
		order  []datamodels.Symbol
		tick   int64
		ticker *time.Ticker
		tickCh <-chan time.Time
	)

	applyStart := func(cmd Command) {
		gen = NewGenerator(cmd.BaseVolatility, rand.New(rand.NewSource(c.seed)))
		states = make(map[datamodels.Symbol]datamodels.AssetGenState, len(cmd.Assets))
		order = order[:0]
		for _, asset := range cmd.Assets {
			states[asset.Symbol] = asset
			order = append(order, asset.Symbol)
		}
		if ticker != nil {
			ticker.Stop()
		}
		ticker = time.NewTicker(TickInterval(cmd.SpeedMultiplier))
		tickCh = ticker.C
		copied := cmd
		lastStart = &copied
		c.emit(Event{Type: EventStarted})
		slog.Info("Simulation lane started",
			"assets", len(cmd.Assets),
			"speed", cmd.SpeedMultiplier,
			"interval", TickInterval(cmd.SpeedMultiplier))
	}

	if resume != nil {
		applyStart(*resume)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return lastStart, ctx.Err()
		case cmd := <-c.commands:
			switch cmd.Type {
			case CommandStart:
				applyStart(cmd)
			case CommandUpdateSpeed:
				if ticker == nil {
					slog.Warn("Speed update before start, ignoring")
					continue
				}
				// Restart the schedule; generator state is untouched.
				ticker.Stop()
				ticker = time.NewTicker(TickInterval(cmd.SpeedMultiplier))
				tickCh = ticker.C
				if lastStart != nil {
					lastStart.SpeedMultiplier = cmd.SpeedMultiplier
				}
				slog.Info("Simulation speed updated",
					"speed", cmd.SpeedMultiplier,
					"interval", TickInterval(cmd.SpeedMultiplier))
			case CommandStop:
				return lastStart, nil
			default:
				slog.Warn("Simulation lane received unknown command", "type", cmd.Type)
			}
		case now := <-tickCh:
			tick++
			batch := &datamodels.TickBatch{
				Tick:      tick,
				Timestamp: now,
				Updates:   make(map[datamodels.Symbol]datamodels.PriceUpdate, len(order)),
			}
			for _, symbol := range order {
				state := states[symbol]
				next, update, genErr := gen.NextTick(state, now)
				if genErr != nil {
					// One bad asset must not sink the batch.
					c.emit(Event{Type: EventError, Err: genErr})
					continue
				}
				states[symbol] = next
				batch.Updates[symbol] = update
			}
			c.emit(Event{Type: EventUpdate, Batch: batch})
		}
	}
}

func (c *Clock) emit(event Event) {
	select {
	case c.events <- event:
		if general.ChannelAtLoadLevel(c.events, 0.8) {
			slog.Warn("Simulation event channel load warning")
		}
	default:
		slog.Warn("Simulation event channel full, dropping event", "type", event.Type)
	}
}

// Command roomprobe drives simulated players through a relay room and reports
// whether each step of the join, start, relay and leave sequence behaved as
// expected. It exits non-zero when any step fails.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/capy-arena/game/relay"
)

var ErrProbeFailed = errors.New("probe failed")

// Options controls a probe run.
type Options struct {
	URL      string
	Room     string
	Updates  int
	Timeout  time.Duration
	Attempts int
}

// Step is the outcome of one check.
type Step struct {
	Name   string
	OK     bool
	Detail string
}

// Report collects the steps of a run.
type Report struct {
	Room  string
	Steps []Step
}

func (r *Report) pass(name, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, OK: true, Detail: detail})
}

func (r *Report) fail(name string, err error) error {
	r.Steps = append(r.Steps, Step{Name: name, Detail: err.Error()})
	return fmt.Errorf("%w: %s: %v", ErrProbeFailed, name, err)
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return true
		}
	}
	return false
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cmd := &cli.Command{
		Name:  "roomprobe",
		Usage: "exercise a capy arena relay room with simulated players",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "relay WebSocket URL", Sources: cli.EnvVars("ROOMPROBE_URL")},
			&cli.StringFlag{Name: "room", Value: "TEST01", Usage: "room code to use", Sources: cli.EnvVars("ROOMPROBE_ROOM")},
			&cli.IntFlag{Name: "updates", Value: 3, Usage: "player_update frames to relay"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "wait for each expected event"},
			&cli.IntFlag{Name: "attempts", Value: 5, Usage: "dial attempts per player"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			report, err := Run(ctx, Options{
				URL:      cmd.String("url"),
				Room:     cmd.String("room"),
				Updates:  int(cmd.Int("updates")),
				Timeout:  cmd.Duration("timeout"),
				Attempts: int(cmd.Int("attempts")),
			})
			printReport(report)
			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("roomprobe: %v", err)
	}
}

func printReport(r *Report) {
	if r == nil {
		return
	}
	fmt.Printf("Room %s\n", r.Room)
	for _, s := range r.Steps {
		status := "OK  "
		if !s.OK {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s", status, s.Name)
		if s.Detail != "" {
			fmt.Printf(" (%s)", s.Detail)
		}
		fmt.Println()
	}
}

// Run joins two players and an extra one to opts.Room and checks the relay's
// responses. It stops at the first failing step.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	report := &Report{Room: opts.Room}

	alice, err := connect(ctx, opts, "probe-alice")
	if err != nil {
		return report, report.fail("connect first player", err)
	}
	defer alice.close()

	bob, err := connect(ctx, opts, "probe-bob")
	if err != nil {
		return report, report.fail("connect second player", err)
	}
	defer bob.close()

	if err := alice.join(opts.Room); err != nil {
		return report, report.fail("first join", err)
	}
	if _, err := alice.expect(relay.EventRoomJoined); err != nil {
		return report, report.fail("first player receives room_joined", err)
	}
	report.pass("first player receives room_joined", "")

	if err := bob.join(opts.Room); err != nil {
		return report, report.fail("second join", err)
	}
	if _, err := alice.expect(relay.EventPlayerJoined); err != nil {
		return report, report.fail("first player sees player_joined", err)
	}
	if _, err := alice.expect(relay.EventGameStart); err != nil {
		return report, report.fail("first player receives game_start", err)
	}
	if _, err := bob.expect(relay.EventRoomJoined); err != nil {
		return report, report.fail("second player receives room_joined", err)
	}
	if _, err := bob.expect(relay.EventGameStart); err != nil {
		return report, report.fail("second player receives game_start", err)
	}
	report.pass("room fills and game starts", "")

	carol, err := connect(ctx, opts, "probe-carol")
	if err != nil {
		return report, report.fail("connect extra player", err)
	}
	if err := carol.join(opts.Room); err != nil {
		carol.close()
		return report, report.fail("extra join", err)
	}
	_, err = carol.expect(relay.EventRoomFull)
	carol.close()
	if err != nil {
		return report, report.fail("extra player receives room_full", err)
	}
	report.pass("extra player receives room_full", "")

	for i := 0; i < opts.Updates; i++ {
		update := map[string]interface{}{"id": alice.id, "x": 100 + i, "y": 50, "facing": "right"}
		if err := alice.send(relay.EventPlayerUpdate, update); err != nil {
			return report, report.fail("send player_update", err)
		}
		if _, err := bob.expect(relay.EventPlayerUpdate); err != nil {
			return report, report.fail("player_update relayed", err)
		}
	}
	report.pass("player_update relayed", fmt.Sprintf("%d frames", opts.Updates))

	if err := alice.send(relay.EventCheeseThrow, map[string]interface{}{"x": 1, "y": 2, "vx": 3}); err != nil {
		return report, report.fail("send cheese_throw", err)
	}
	if _, err := bob.expect(relay.EventCheeseThrow); err != nil {
		return report, report.fail("cheese_throw relayed", err)
	}
	report.pass("cheese_throw relayed", "")

	alice.close()
	env, err := bob.expect(relay.EventPlayerLeft)
	if err != nil {
		return report, report.fail("remaining player sees player_left", err)
	}
	report.pass("remaining player sees player_left", string(env.Data))

	return report, nil
}

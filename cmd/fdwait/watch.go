// File: cmd/fdwait/watch.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"code.hybscloud.com/kont"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/control"
	"github.com/momentics/hioload-wait/facade"
	"github.com/momentics/hioload-wait/fiber"
	"github.com/momentics/hioload-wait/host"
)

type watchOptions struct {
	fd         int
	timeout    float64
	writeAfter time.Duration
	configPath string
	stage      string
	dumpPath   string
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Suspend one request until the descriptor is readable or the timeout fires",
	Long: `Runs a single request whose fiber waits on a descriptor. Without --fd a pipe
is created and, with --write-after, written to after the given delay.
A negative --timeout waits without a deadline.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWatch(cmd.Context(), cmd.OutOrStdout(), watchOpts)
	},
}

func init() {
	f := watchCmd.Flags()
	f.IntVar(&watchOpts.fd, "fd", -1, "descriptor to watch (default: a fresh pipe)")
	f.Float64Var(&watchOpts.timeout, "timeout", 1, "timeout in seconds, negative for none")
	f.DurationVar(&watchOpts.writeAfter, "write-after", 0, "write to the pipe after this delay")
	f.StringVar(&watchOpts.configPath, "config", "", "TOML config file, watched for changes")
	f.StringVar(&watchOpts.stage, "stage", "content", "stage to wait in (rewrite|access|content)")
	f.StringVar(&watchOpts.dumpPath, "dump", "", "write a msgpack debug dump to this file")
}

type errUsage string

func (e errUsage) Error() string { return string(e) }

var stages = map[string]host.Stage{
	"rewrite": host.StageRewrite,
	"access":  host.StageAccess,
	"content": host.StageContent,
}

func loadFacadeConfig(path string) (*facade.Config, error) {
	if path == "" {
		return facade.DefaultConfig(), nil
	}
	c, err := control.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return facade.ConfigFrom(c, path), nil
}

func runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	stage, ok := stages[opts.stage]
	if !ok {
		return errUsage(fmt.Sprintf("unknown stage %q", opts.stage))
	}
	if opts.writeAfter > 0 && opts.fd >= 0 {
		return errUsage("--write-after needs the built-in pipe; drop --fd")
	}
	cfg, err := loadFacadeConfig(opts.configPath)
	if err != nil {
		return err
	}
	w, err := facade.New(cfg)
	if err != nil {
		return err
	}

	fd, wfd := opts.fd, -1
	if fd < 0 {
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		defer unix.Close(p[0])
		defer unix.Close(p[1])
		fd, wfd = p[0], p[1]
	}

	args := []float64{float64(fd)}
	if opts.timeout >= 0 {
		args = append(args, opts.timeout)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if wfd >= 0 && opts.writeAfter > 0 {
		g.Go(func() error {
			select {
			case <-time.After(opts.writeAfter):
				_, err := unix.Write(wfd, []byte{'x'})
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}

	results := make(chan fiber.WaitResult, 1)
	phases := []host.Phase{w.Phase(stage, func(*host.Request) kont.Eff[fiber.Exit] {
		return fiber.WaitThen(args, func(res fiber.WaitResult) kont.Eff[fiber.Exit] {
			results <- res
			return fiber.Done(0)
		})
	})}
	if stage != host.StageContent {
		phases = append(phases, host.Phase{Stage: host.StageContent, Handler: func(*host.Request) host.Code {
			return host.CodeOK
		}})
	}
	r := w.NewRequest(phases...)

	start := time.Now()
	if err := w.Start(r); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}

	var (
		res         fiber.WaitResult
		interrupted bool
	)
	select {
	case res = <-results:
	case <-gctx.Done():
		interrupted = true
	}
	elapsed := time.Since(start)

	if opts.dumpPath != "" {
		if err := writeDump(w, opts.dumpPath); err != nil {
			fmt.Fprintf(os.Stderr, "dump: %v\n", err)
		}
	}
	_ = w.Shutdown()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if interrupted {
		return errors.New("interrupted before the wait finished")
	}
	printResult(out, fd, res, elapsed)
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func writeDump(w *facade.Waiter, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.EncodeState(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	readyColor   = color.New(color.FgGreen, color.Bold)
	timeoutColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printResult(out io.Writer, fd int, res fiber.WaitResult, elapsed time.Duration) {
	if res.Err != nil {
		errorColor.Fprintf(out, "error")
		fmt.Fprintf(out, " fd=%d: %v (code %d)\n", fd, res.Err, api.CodeOf(res.Err))
		return
	}
	c := readyColor
	if res.Outcome == api.OutcomeTimedOut {
		c = timeoutColor
	}
	c.Fprintf(out, "%s", res.Outcome)
	fmt.Fprintf(out, " fd=%d outcome=%d after %v\n", fd, int(res.Outcome), elapsed.Round(time.Microsecond))
}

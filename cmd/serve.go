// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Thermoquad/rotostat/internal/config"
	"github.com/Thermoquad/rotostat/internal/dispatch"
	"github.com/Thermoquad/rotostat/internal/link"
	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/internal/nvs"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var (
	serveListen string
	servePath   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the motor controller",
	Long: `Run the motor controller on a serial port or a WebSocket listener.

The controller owns the state machine, the parameter store and the emergency
latch. Commands arrive as link packets, are decoded, dispatched to the state
machine one at a time and answered according to the transport mode.

Motion is simulated: ramps take |delta f| / rate seconds scaled by
drive.timeScale, after which the controller moves on to RUNNING or IDLE.

Send SIGUSR1 to trigger an emergency stop from outside the protocol.

Examples:
  rotostat serve --port /dev/ttyS1 --config /etc/rotostat.yaml
  rotostat serve --listen :8080 --username admin`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Serve WebSocket sessions on this address instead of a serial port")
	serveCmd.Flags().StringVar(&servePath, "path", "/ws", "WebSocket endpoint path")
}

// controllerStack is everything behind the link
type controllerStack struct {
	controller *motor.Controller
	dispatcher *dispatch.Dispatcher
	stats      *lvfv.Statistics
}

// buildController wires parameter store, persistence, drive, state machine and dispatcher
func buildController(cfg *config.Config) (*controllerStack, error) {
	store, err := motor.NewParameterStore(cfg.Limits(), cfg.Defaults())
	if err != nil {
		return nil, err
	}

	opts := []motor.Option{motor.WithStopRecovery(cfg.Emergency.StopRecovers)}

	if cfg.NVS.Path != "" {
		nv := nvs.Open(cfg.NVS.Path)
		saved, err := nv.Load()
		switch {
		case errors.Is(err, nvs.ErrNotFound):
			log.Printf("No saved parameters at %s, using defaults", nv.Path())
		case err != nil:
			log.Printf("Ignoring saved parameters: %v", err)
		default:
			for _, f := range store.Restore(saved) {
				log.Printf("Saved %s %d outside limits, using default %d", f, saved.Get(f), store.Get(f))
			}
		}
		opts = append(opts, motor.WithPersister(nv))
	}

	drive := motor.NewSimulatedDrive(nil, cfg.Drive.TimeScale)
	controller := motor.NewController(motor.NewMachine(store, drive, opts...), cfg.Controller.MailboxSize)
	drive.SetSink(controller)

	return &controllerStack{
		controller: controller,
		dispatcher: dispatch.New(controller, cfg.Controller.DispatchTimeout),
		stats:      lvfv.NewStatistics(),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile := setupLogging(cfg.Log)
	defer logFile.Close()

	stack, err := buildController(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := stack.controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Controller stopped: %v", err)
		}
	}()

	go watchEmergencySignal(ctx, stack.controller)
	go logStatistics(ctx, stack, cfg.Log.StatsInterval)

	log.Printf("Controller started (mode %s, mailbox %d, timeout %v)",
		cfg.Transport.Mode, cfg.Controller.MailboxSize, cfg.Controller.DispatchTimeout)

	if serveListen != "" {
		return serveWebSocket(ctx, cfg, stack)
	}
	return serveSerial(ctx, cfg, stack)
}

func serveSerial(ctx context.Context, cfg *config.Config, stack *controllerStack) error {
	if portName == "" {
		return fmt.Errorf("either --port or --listen must be specified")
	}
	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Printf("Serving on serial %s @ %d baud", portName, baudRate)
	session := link.NewSession(portName, conn, stack.dispatcher, cfg.Transport.Mode, stack.stats)
	err = session.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func serveWebSocket(ctx context.Context, cfg *config.Config, stack *controllerStack) error {
	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	sessions := newSessionTracker()

	listener := NewWebSocketListener(serveListen, servePath, wsUsername, password, func(conn Connection, remote string) {
		if !sessions.begin(conn) {
			log.Printf("Session %s refused: shutting down", remote)
			return
		}
		defer sessions.end(conn)

		log.Printf("Session %s opened", remote)
		session := link.NewSession(remote, conn, stack.dispatcher, cfg.Transport.Mode, stack.stats)
		if err := session.Serve(ctx); err != nil && !errors.Is(err, ErrConnectionClosed) && ctx.Err() == nil {
			log.Printf("Session %s ended: %v", remote, err)
		}

		conn.Close()
		log.Printf("Session %s closed", remote)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- listener.ListenAndServe() }()
	log.Printf("Serving WebSocket sessions on %s%s", serveListen, servePath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := listener.Shutdown(shutdownCtx)
	err = multierr.Append(err, sessions.closeAll())
	sessions.wait()
	return err
}

// watchEmergencySignal turns SIGUSR1 into an emergency stop
func watchEmergencySignal(ctx context.Context, c *motor.Controller) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.Printf("Emergency signal received")
			c.Emergency()
		}
	}
}

// logStatistics periodically logs link statistics and controller status
func logStatistics(ctx context.Context, stack *controllerStack, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := stack.controller.Status()
			log.Printf("Status: state=%s moving=%v latched=%v frequency=%d Hz\n%s",
				st.State, st.Moving, st.Latched, st.Parameters.Frequency, stack.stats)
		}
	}
}

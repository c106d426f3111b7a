// Command dm-client runs one OMA DM management session against a
// firmware-update server.
//
// It registers the device, opens a client-initiated session, answers the
// server's messages until the server signals Final or aborts, and - if
// the server offered a firmware descriptor - resolves and prints the
// firmware object.
//
// Usage:
//
//	dm-client --device-id "IMEI:..." [flags]
//
// Flags:
//
//	--config string       YAML configuration file path
//	--device-id string    Device identity (e.g. "IMEI:...")
//	--server-url string   Management server endpoint
//	--register-url string Registration endpoint
//	--log-level string    Log level: debug, info, warn, error (default "info")
//	--event-log string    Path for the binary protocol event log (.dmlog)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omadm-protocol/omadm-go/pkg/fumo"
	"github.com/omadm-protocol/omadm-go/pkg/log"
	"github.com/omadm-protocol/omadm-go/pkg/session"
	"github.com/omadm-protocol/omadm-go/pkg/transport"
	"github.com/omadm-protocol/omadm-go/pkg/wire"
)

// maxRounds caps the number of round trips in one session in case of a
// misbehaving server.
const maxRounds = 10

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	flags := config{}

	cmd := &cobra.Command{
		Use:           "dm-client",
		Short:         "Run one OMA DM firmware-update session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file path")
	cmd.Flags().StringVar(&flags.DeviceID, "device-id", "", "device identity (e.g. \"IMEI:...\")")
	cmd.Flags().StringVar(&flags.ServerURL, "server-url", "", "management server endpoint")
	cmd.Flags().StringVar(&flags.RegisterURL, "register-url", "", "registration endpoint")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.EventLog, "event-log", "", "path for the binary protocol event log")

	return cmd
}

func run(ctx context.Context, cfg config) error {
	slogger := newSlogger(cfg.LogLevel)

	logger, closeLog, err := newEventLogger(slogger, cfg.EventLog)
	if err != nil {
		return err
	}
	defer closeLog()

	tr := transport.NewHTTP(transport.Config{
		RegisterURL: cfg.RegisterURL,
		Timeout:     30 * time.Second,
	})

	s, err := session.New(session.Config{
		ClientID:       cfg.DeviceID,
		ServerURL:      cfg.ServerURL,
		ServerID:       cfg.ServerID,
		ServerPassword: cfg.ServerPassword,
		Logger:         logger,
	}, tr)
	if err != nil {
		return err
	}
	slogger.Info("starting management session",
		"session_id", s.SessionID(), "device_id", cfg.DeviceID, "server_url", s.ServerURL())

	descriptorURI, err := runSession(ctx, s, cfg.DeviceID)
	if err != nil {
		return err
	}

	if descriptorURI == "" {
		fmt.Println("No firmware update offered.")
		return nil
	}

	obj, err := fumo.NewResolver(tr, logger).Resolve(ctx, descriptorURI)
	if errors.Is(err, fumo.ErrNotAvailable) {
		fmt.Println("No firmware update available.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("Firmware update available:")
	fmt.Printf("  Description:    %s\n", obj.Description)
	fmt.Printf("  Version:        %s\n", obj.Version)
	fmt.Printf("  Size:           %d bytes\n", obj.Size)
	fmt.Printf("  URI:            %s\n", obj.ObjectURI)
	if obj.Checksum != "" {
		fmt.Printf("  Checksum (MD5): %s\n", obj.Checksum)
	}
	if obj.SecurityPatch != "" {
		fmt.Printf("  Security patch: %s\n", obj.SecurityPatch)
	}
	return nil
}

// runSession drives the message loop and returns the firmware descriptor
// URI if the server offered one.
func runSession(ctx context.Context, s *session.Session, deviceID string) (string, error) {
	body := initialBody(deviceID)
	descriptorURI := ""

	for round := 0; round < maxRounds; round++ {
		resp, err := s.Send(ctx, body)
		if err != nil {
			return "", err
		}

		for _, al := range resp.Body.Alerts() {
			if al.Data == wire.AlertGeneric && len(al.Items) > 0 && al.Items[0].Source != nil {
				descriptorURI = al.Items[0].Source.URI
			}
		}

		if s.Aborted() {
			fmt.Println("Session aborted by server.")
			return descriptorURI, nil
		}
		if resp.Body.Final {
			return descriptorURI, nil
		}

		// Acknowledge the server's header and commands for the next round.
		body = ackBody(s, resp)
	}
	return descriptorURI, fmt.Errorf("session exceeded %d round trips", maxRounds)
}

// initialBody opens the session: a client-initiated alert plus the
// device information announcement.
func initialBody(deviceID string) *wire.Body {
	return &wire.Body{
		Commands: []wire.Command{
			&wire.Alert{CmdID: 1, Data: wire.AlertClientSession},
			&wire.Replace{CmdID: 2, Items: []wire.Item{
				{Source: &wire.LocURI{URI: "./DevInfo/DevId"}, Data: deviceID},
				{Source: &wire.LocURI{URI: "./DevInfo/DmV"}, Data: wire.VerProto},
			}},
		},
		Final: true,
	}
}

// ackBody acknowledges everything the server sent: the SyncHdr auth
// status first, then a 200 for each non-status command.
func ackBody(s *session.Session, resp *wire.Message) *wire.Body {
	cmdID := 1
	body := &wire.Body{Final: true}
	body.Commands = append(body.Commands, s.BuildAuthStatus(cmdID))

	for i, cmd := range resp.Body.Commands {
		var name string
		switch cmd.(type) {
		case *wire.Alert:
			name = "Alert"
		case *wire.Replace:
			name = "Replace"
		default:
			continue
		}
		cmdID++
		body.Commands = append(body.Commands, &wire.Status{
			CmdID:  cmdID,
			MsgRef: resp.Hdr.MsgID,
			CmdRef: i + 1,
			Cmd:    name,
			Data:   wire.StatusOK,
		})
	}
	return body
}

func newSlogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newEventLogger builds the protocol event sink: console always, plus a
// binary file when configured.
func newEventLogger(slogger *slog.Logger, path string) (log.Logger, func(), error) {
	console := log.NewSlogAdapter(slogger)
	if path == "" {
		return console, func() {}, nil
	}
	fl, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return log.NewMultiLogger(console, fl), func() { fl.Close() }, nil
}

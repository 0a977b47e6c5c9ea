package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/discovery"
	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/reader"
	"github.com/muurk/r2k/internal/server"
	"github.com/muurk/r2k/internal/simulator"
	"github.com/muurk/r2k/internal/transport"
	"github.com/muurk/r2k/internal/ui"
	"github.com/muurk/r2k/internal/version"
)

func init() {
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(simCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "TLS private key file")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not publish the server over mDNS")
	serveCmd.Flags().StringVar(&instanceName, "instance", "", "mDNS instance name (default from config, then the reader name)")
	serveCmd.Flags().BoolVar(&passive, "passive", false, "Only forward events; do not start inventory rounds")
	serveCmd.Flags().IntVar(&repeatCount, "repeat", 1, "Inventory rounds per command (1-255)")
	serveCmd.Flags().StringVar(&sessionName, "session", "", "Gen2 session (S0-S3)")
	serveCmd.Flags().StringVar(&targetName, "target", "A", "Inventoried flag target with --session (A or B)")
	serveCmd.Flags().StringVar(&fastSwitch, "antennas", "", "Cycle through antennas, e.g. 0,1,2,3")
	serveCmd.Flags().DurationVar(&roundTimeout, "round-timeout", ui.DefaultRoundTimeout, "Restart a round with no summary after this long")

	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for servers")

	simCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:4001", "TCP address to serve the simulated reader on")
	simCmd.Flags().IntVar(&simAddress, "sim-address", 1, "Reader address of the simulated module")
	simCmd.Flags().IntVar(&simDisconnected, "disconnected-antenna", -1, "Report this antenna port (0-3) as disconnected")
}

var (
	listenAddr      string
	certPath        string
	keyPath         string
	noAdvertise     bool
	instanceName    string
	passive         bool
	scanTimeout     time.Duration
	simAddress      int
	simDisconnected int
)

var portsCmd = &cobra.Command{
	Use:   "ports [filter]",
	Short: "List serial ports",
	Long: `List the serial ports on this host. USB adapters show their vendor and
product IDs. A filter keeps ports whose name or product contains it.`,
	Example: `  r2k ports
  r2k ports CP210`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		ports, err := transport.ListPorts(filter)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(ports)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p.Description())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream reader events to WebSocket clients",
	Long: `Run inventory rounds back to back and send every event as JSON to the
clients connected to /events. /status reports link counters and /healthz
answers load balancers.

The server is advertised over mDNS as ` + discovery.ServiceType + ` so
'r2k discover' can find it.`,
	Example: `  r2k serve --reader dock-door
  r2k serve --port sim:// --listen 127.0.0.1:8080 --no-advertise
  r2k serve --cert fullchain.pem --key privkey.pem`,
	Args: cobra.NoArgs,
	RunE: withSession(runServe),
}

func runServe(cmd *cobra.Command, args []string, s *session) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = cfg.Server.Listen
	}
	if instanceName == "" {
		instanceName = cfg.Server.Instance
	}
	if instanceName == "" || instanceName == "r2k" {
		instanceName = "r2k " + s.name
	}

	fw, err := s.client.FirmwareVersion(ctx)
	if err != nil {
		return s.fail("Reader not responding", err, connectTips...)
	}

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}
	conn := s.client.Conn()
	srv := server.New(&server.Config{
		Listen:   listenAddr,
		Reader:   s.name,
		CertPath: certPath,
		KeyPath:  keyPath,
		Stats:    conn.Stats,
	})
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, l) }()

	if !noAdvertise && cfg.Server.Advertise {
		port := l.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(instanceName, port, discovery.TXT{
			Reader:   s.name,
			Firmware: fw.String(),
			Version:  version.Version,
		})
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	if outputFormat == formatText {
		s.printer.Success("Event server running", map[string]string{
			"Events":   fmt.Sprintf("ws://%s/events", l.Addr()),
			"Status":   fmt.Sprintf("http://%s/status", l.Addr()),
			"Firmware": fw.String(),
		})
	}

	if passive {
		srv.Pump(ctx, conn.Events())
	} else {
		start, _, err := roundStarter(ctx, s.client)
		if err != nil {
			return err
		}
		err = scan(ctx, conn, start, 0, func(ev protocol.Response) bool {
			if err := srv.Publish(server.NewMessage(s.name, ev)); err != nil {
				logging.Warn("Failed to publish event", zap.Error(err))
			}
			return true
		})
		if err != nil && !errors.Is(err, reader.ErrClosed) {
			logging.Error("Inventory stopped", zap.Error(err))
		}
	}

	cancel()
	if err := <-serveErr; err != nil {
		return err
	}
	if err := conn.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find r2k event servers on the local network",
	Example: `  r2k discover
  r2k discover --timeout 10s --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout
		if outputFormat == formatText {
			fmt.Printf("Scanning for r2k servers (timeout: %s)...\n\n", scanTimeout)
		}

		services, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if outputFormat == formatJSON {
			return printJSON(services)
		}

		p := ui.NewPrinter(os.Stdout)
		if len(services) == 0 {
			p.Warning("No servers found", nil)
			return nil
		}
		for _, svc := range services {
			details := map[string]string{
				"Host":   svc.Hostname,
				"Events": svc.EventsURL(),
				"Status": svc.StatusURL(),
			}
			if svc.Reader != "" {
				details["Reader"] = svc.Reader
			}
			if fw := svc.GetMetadata("firmware"); fw != "" {
				details["Firmware"] = fw
			}
			p.Success(svc.Instance, details)
		}
		return nil
	},
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Serve a simulated reader over TCP",
	Long: `Serve a simulated R2000 module with a few tags on a TCP port, the way a
serial-to-Ethernet bridge would. Point other r2k commands at it with
--port tcp://127.0.0.1:4001.

Commands given --port sim:// talk to a private in-process simulator
instead.`,
	Example: `  r2k sim
  r2k sim --listen :4001 --disconnected-antenna 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simAddress < 0 || simAddress > protocol.MaxReaderAddress {
			return fmt.Errorf("invalid --sim-address %d", simAddress)
		}
		opts := []simulator.Option{simulator.WithAddress(byte(simAddress))}
		if simDisconnected >= 0 {
			opts = append(opts, simulator.WithDisconnectedAntenna(simDisconnected))
		}

		l, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
		}
		ui.NewPrinter(os.Stdout).Success("Simulated reader running", map[string]string{
			"Target":  "tcp://" + l.Addr().String(),
			"Address": strconv.Itoa(simAddress),
		})
		return simulator.New(opts...).Listen(cmd.Context(), l)
	},
}

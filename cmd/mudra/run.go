package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/discovery"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/telemetry"
	"github.com/ayusman/mudra/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the drawing board with a preview window",
	Long: `Opens the camera and the preview window and serves the viewer.

Keys in the preview window: 1-8 color, +/- brush, space next shape,
enter complete shape, z undo, x redo, c clear, s save, t trail, h HUD, q quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBoard(cmd, false)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the drawing board without a window",
	Long:  `Runs the board headless; it is driven and viewed over HTTP only.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBoard(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, serveCmd} {
		c.Flags().String("addr", "", "address to serve the viewer on (default from config)")
		c.Flags().String("load", "", "drawing ID or image path to start from")
		c.Flags().Bool("advertise", false, "announce the viewer on the LAN over mDNS")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().Bool("no-window", false, "do not open the preview window")
	runCmd.Flags().Bool("tray", false, "show the system tray menu")
}

func runBoard(cmd *cobra.Command, headless bool) error {
	// Get*/Changed cannot fail for defined flags
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Addr
	}
	load, _ := cmd.Flags().GetString("load")
	if advertise, _ := cmd.Flags().GetBool("advertise"); advertise {
		cfg.Advertise = true
	}
	if noWindow, _ := cmd.Flags().GetBool("no-window"); noWindow || headless {
		cfg.Window = false
	}
	if useTray, _ := cmd.Flags().GetBool("tray"); useTray && !headless {
		cfg.Tray = true
	}
	if cfg.Tray {
		// the tray takes the main thread the window would need
		cfg.Window = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	} else {
		defer shutdown(context.Background())
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st, Load: load})
	if err != nil {
		return err
	}

	webDir := findWebDir()
	if webDir != "" {
		log.WithField("dir", webDir).Info("serving static files")
	}
	srv := server.New(server.Config{
		StaticDir:  webDir,
		Controller: a,
		Persister:  a.Persister(),
		Frames:     a.Frames(),
		Hub:        a.Hub(),
	})

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Run(srvCtx, addr)
	}()

	if cfg.Advertise {
		if adv, err := advertise(addr); err != nil {
			log.WithError(err).Warn("mDNS advertisement failed")
		} else {
			defer adv.Shutdown()
		}
	}

	log.WithField("url", viewerURL(addr)).Info("viewer available")

	if cfg.Tray {
		err = runWithTray(ctx, a, addr)
	} else {
		err = a.Run(ctx)
	}

	stopServer()
	if serr := <-srvErr; serr != nil && err == nil {
		err = fmt.Errorf("server: %w", serr)
	}
	return err
}

// runWithTray runs the loop in the background while the tray holds the main
// thread. Either one ending stops the other.
func runWithTray(ctx context.Context, a *app.App, addr string) error {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnTrigger(a.Trigger)
	t.OnOpen(func() {
		if err := openBrowser(viewerURL(addr)); err != nil {
			log.WithError(err).Warn("failed to open browser")
		}
	})
	t.OnQuit(a.Quit)
	a.OnStatus = t.SetStatus

	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	a.Quit()
	return <-errc
}

func advertise(addr string) (*discovery.Advertiser, error) {
	port, err := discovery.PortOf(addr)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "mudra"
	}
	return discovery.Advertise("Mudra on "+host, port, []string{"version=" + version, "path=/"})
}

// viewerURL turns a listen address into a URL a local browser can open.
func viewerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd":
		c = exec.Command("xdg-open", url)
	default:
		return errors.New("unsupported platform " + runtime.GOOS)
	}
	return c.Start()
}

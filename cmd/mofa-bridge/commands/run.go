package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mofa-org/dorabridge/cmd/mofa-bridge/internal/config"
	"github.com/mofa-org/dorabridge/pkg/cli"
	"github.com/mofa-org/dorabridge/pkg/dataflow"
	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
	"github.com/mofa-org/dorabridge/pkg/dorabridge/dispatch"
	"github.com/mofa-org/dorabridge/pkg/dorabridge/widgets"
)

var (
	runAddr     string
	runStart    bool
	runDoraBin  string
	runDuration time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <dataflow.yml>",
	Short: "Connect the widget bridges of a dataflow and print their events",
	Long: `Create one bridge per widget node of the dataflow, register them with
the node gateway and print every bridge event until interrupted.

With --start the dataflow is started with "dora start --detach" first and
stopped on exit.

The gateway address and bridge timings come from the engine service of the
selected context; --addr overrides the address.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := dataflow.ParseFile(args[0])
		if err != nil {
			return err
		}
		engine, err := loadEngineConfig()
		if err != nil {
			return err
		}
		level, err := engine.Level()
		if err != nil {
			return err
		}
		setupLogging(level)
		if runAddr != "" {
			engine.Addr = runAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if runDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runDuration)
			defer cancel()
		}
		return runDataflow(ctx, df, engine)
	},
}

func init() {
	runCmd.Flags().StringVar(&runAddr, "addr", "", "node gateway address (default from engine config)")
	runCmd.Flags().BoolVar(&runStart, "start", false, "start the dataflow with the dora CLI before connecting")
	runCmd.Flags().StringVar(&runDoraBin, "dora-bin", "dora", "dora executable used by --start")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop after this long (default: until interrupted)")
	rootCmd.AddCommand(runCmd)
}

// loadEngineConfig loads engine.yaml of the selected context. Without any
// context the defaults apply.
func loadEngineConfig() (*config.EngineConfig, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.ResolveContext(contextName)
	if errors.Is(err, config.ErrNoContext) {
		return &config.EngineConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	return config.LoadEngine(dir)
}

func runDataflow(ctx context.Context, df *dataflow.ParsedDataflow, engine *config.EngineConfig) error {
	log := slog.Default()

	if runStart {
		ctrl := dataflow.NewController(df, &dataflow.CLIRunner{Bin: runDoraBin}, log)
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ctrl.Stop(stopCtx); err != nil {
				log.Warn("stop dataflow", "error", err)
			}
		}()
		cli.PrintSuccess("Dataflow started (%s)", ctrl.DataflowID())
	}

	opts := engine.BridgeOptions()
	opts.Connector = &dora.WSConnector{Addr: engine.GatewayAddr(), Logger: log}
	opts.Logger = log

	d := dispatch.New(df, opts)
	if rate := engine.OutputSampleRate; rate > 0 {
		d.RegisterFactory(dorabridge.NodeAudioPlayer, func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewAudioPlayer(n.ID, opts, widgets.WithOutputSampleRate(rate))
		})
	}
	if d.CreateBridges() == 0 {
		d.Close()
		return fmt.Errorf("%s: no widget nodes", df.Path)
	}
	defer d.Close()

	if err := d.ConnectAll(); err != nil {
		cli.PrintWarning("Some bridges failed to connect: %v", err)
	}

	styles := cli.NewStyles(cli.DefaultTheme)
	width := 0
	for _, b := range d.Bridges() {
		width = max(width, len(b.NodeID()))
	}
	fmt.Printf("%s %s (%s)\n", styles.Title.Render("dataflow"), df.Path, styles.State(d.State().String()))
	for _, b := range d.Bridges() {
		fmt.Printf("  %s %s\n", styles.Node(b.NodeID(), width), styles.State(b.State().String()))
	}

	events := make(chan nodeEvent)
	for _, b := range d.Bridges() {
		go forwardEvents(ctx, b, events)
	}

	last := d.State()
	for {
		select {
		case <-ctx.Done():
			if err := d.DisconnectAll(); err != nil {
				log.Warn("disconnect", "error", err)
			}
			return nil
		case ev := <-events:
			fmt.Println(eventLine(styles, width, ev.node, ev.event))
			if s := d.State(); s != last {
				last = s
				fmt.Printf("%s %s\n", styles.Title.Render("dataflow"), styles.State(s.String()))
			}
		}
	}
}

type nodeEvent struct {
	node  string
	event dorabridge.BridgeEvent
}

func forwardEvents(ctx context.Context, b dorabridge.Bridge, out chan<- nodeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.Subscribe():
			select {
			case out <- nodeEvent{node: b.NodeID(), event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// eventLine renders one bridge event.
func eventLine(s cli.Styles, width int, nodeID string, ev dorabridge.BridgeEvent) string {
	node := s.Node(nodeID, width)
	switch ev.Kind {
	case dorabridge.EventConnected:
		return node + " " + s.State("connected")
	case dorabridge.EventDisconnected:
		return node + " " + s.State("disconnected")
	case dorabridge.EventError:
		return node + " " + s.State("error") + " " + ev.Err
	case dorabridge.EventDataReceived:
		return node + " " + s.Help.Render(ev.InputID) + " " + describeData(ev.Data)
	default:
		return node + " " + ev.Kind.String()
	}
}

const maxTextWidth = 80

func describeData(d dorabridge.DoraData) string {
	if a, ok := d.Audio(); ok {
		desc := fmt.Sprintf("audio %d samples %s %s", len(a.Samples), cli.FormatSampleRate(a.SampleRate), cli.FormatDuration(a.Duration()))
		if a.ParticipantID != "" {
			desc += " participant=" + a.ParticipantID
		}
		return desc
	}
	if t, ok := d.Text(); ok {
		return "text " + cli.Truncate(oneLine(t), maxTextWidth)
	}
	if e, ok := d.Log(); ok {
		return fmt.Sprintf("log [%s] %s: %s", e.Level, e.NodeID, cli.Truncate(oneLine(e.Message), maxTextWidth))
	}
	if m, ok := d.Chat(); ok {
		desc := fmt.Sprintf("chat %s: %s", m.Role, cli.Truncate(oneLine(m.Content), maxTextWidth))
		if m.IsStreaming {
			desc += " …"
		}
		return desc
	}
	if c, ok := d.Control(); ok {
		return "control " + c.Action
	}
	return d.Kind().String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

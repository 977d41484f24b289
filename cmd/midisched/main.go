// Command midisched converts between MIDI/SynthTribe pattern formats
// and drives the real-time scheduler that plays them out to a MIDI
// port, either headless (serve/play) or via the terminal UI.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	// Blank-imported here, not in pkg/scheduler, so the library stays
	// usable in tests without linking rtmidi's cgo backend.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/beatforge/midisched/pkg/api"
	"github.com/beatforge/midisched/pkg/config"
	"github.com/beatforge/midisched/pkg/converter"
	"github.com/beatforge/midisched/pkg/converter/devices"
	"github.com/beatforge/midisched/pkg/scheduler"
	"github.com/beatforge/midisched/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// startupLeadMs gives the CLI enough headroom, after parsing flags and
// opening a MIDI port, to admit a pattern's first note before its
// anchor tick would already be in the past.
const startupLeadMs = 500

var (
	outputFile string
	deviceName string

	cfgViper = config.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midisched",
	Short: "Convert and play Behringer SynthTribe patterns over real-time MIDI",
	Long: `midisched converts between standard MIDI files and Behringer
SynthTribe .seq/.syx pattern formats, and can schedule a converted
pattern for real-time playback over a MIDI output port.

Examples:
  midisched convert pattern.mid -o pattern.seq
  midisched play pattern.seq --port "IAC Driver Bus 1"
  midisched serve --http-addr :8080
  midisched tui`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var midi2seqCmd = &cobra.Command{
	Use: "midi2seq <input.mid>", Short: "Convert MIDI to .seq format",
	Args: cobra.ExactArgs(1), RunE: runMIDIToSeq,
}

var seq2midiCmd = &cobra.Command{
	Use: "seq2midi <input.seq>", Short: "Convert .seq to MIDI format",
	Args: cobra.ExactArgs(1), RunE: runSeqToMIDI,
}

var midi2syxCmd = &cobra.Command{
	Use: "midi2syx <input.mid>", Short: "Convert MIDI to .syx format",
	Args: cobra.ExactArgs(1), RunE: runMIDIToSyx,
}

var syx2midiCmd = &cobra.Command{
	Use: "syx2midi <input.syx>", Short: "Convert .syx to MIDI format",
	Args: cobra.ExactArgs(1), RunE: runSyxToMIDI,
}

var seq2syxCmd = &cobra.Command{
	Use: "seq2syx <input.seq>", Short: "Convert .seq to .syx format",
	Args: cobra.ExactArgs(1), RunE: runSeqToSyx,
}

var syx2seqCmd = &cobra.Command{
	Use: "syx2seq <input.syx>", Short: "Convert .syx to .seq format",
	Args: cobra.ExactArgs(1), RunE: runSyxToSeq,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control-plane API",
	RunE:  runServe,
}

var playCmd = &cobra.Command{
	Use:   "play <pattern.seq>",
	Short: "Schedule a pattern for real-time playback over a MIDI port",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <pattern.seq>",
	Short: "Play a pattern while watching live dispatch in the terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runMonitor,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "td3", "Target device (td3)")

	for _, c := range []*cobra.Command{midi2seqCmd, seq2midiCmd, midi2syxCmd, syx2midiCmd, seq2syxCmd, syx2seqCmd} {
		c.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	}
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	serveCmd.Flags().String("http-addr", "", "override configured HTTP listen address")
	_ = cfgViper.BindPFlag("http_addr", serveCmd.Flags().Lookup("http-addr"))

	playCmd.Flags().String("port", "", "MIDI output port name (overrides config)")
	playCmd.Flags().Float64("tempo", 0, "tempo in BPM (overrides config)")
	_ = cfgViper.BindPFlag("midi_port", playCmd.Flags().Lookup("port"))
	_ = cfgViper.BindPFlag("tempo_bpm", playCmd.Flags().Lookup("tempo"))

	monitorCmd.Flags().String("port", "", "MIDI output port name (overrides config)")
	monitorCmd.Flags().Float64("tempo", 0, "tempo in BPM (overrides config)")

	rootCmd.AddCommand(convertCmd, midi2seqCmd, seq2midiCmd, midi2syxCmd, syx2midiCmd,
		seq2syxCmd, syx2seqCmd, tuiCmd, serveCmd, playCmd, monitorCmd)
}

func getDevice() converter.Device {
	switch strings.ToLower(deviceName) {
	case "td3", "td-3":
		return devices.NewTD3()
	default:
		return devices.NewTD3()
	}
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + defaultExt
}

func newLogger(cfg *config.Config) *charmlog.Logger {
	l := charmlog.New(os.Stderr)
	if lvl, err := charmlog.ParseLevel(cfg.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.New(getDevice())
	conv.SetLogger(newLogger(config.Load(cfgViper)))
	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runMIDIToSeq(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".seq")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.MIDIToSeq(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runSeqToMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.SeqToMIDI(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runMIDIToSyx(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".syx")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.MIDIToSyx(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runSyxToMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.SyxToMIDI(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runSeqToSyx(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".syx")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.SeqToSyx(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runSyxToSeq(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".seq")
	conv := converter.New(getDevice())
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	result, err := conv.SyxToSeq(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.RunWithLogger(newLogger(config.Load(cfgViper)))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load(cfgViper)
	logger := newLogger(cfg)

	sched, bsink, err := buildScheduler(cfg, logger, false)
	if err != nil {
		logger.Warnf("no MIDI sink available, serving in dry-run mode: %v", err)
		sched, bsink, err = buildScheduler(cfg, logger, true)
		if err != nil {
			return err
		}
	}

	if cfg.MetricsEnabled {
		if err := sched.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			logger.Warnf("metrics registration failed: %v", err)
		}
	}

	srv := api.NewServer(sched, bsink)
	logger.Infof("listening on %s", cfg.HTTPAddr)
	return srv.Run(cfg.HTTPAddr)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg := config.Load(cfgViper)
	logger := newLogger(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	pattern, err := getDevice().ParseSeq(data)
	if err != nil {
		return fmt.Errorf("parsing pattern: %w", err)
	}

	sched, _, err := buildScheduler(cfg, logger, false)
	if err != nil {
		return err
	}
	defer sched.Stop()

	descs := converter.PatternToDescriptors(pattern, cfg.Channel)
	converter.SeedFirstTick(descs, sched.Future(startupLeadMs))
	if err := sched.AddNotes(descs); err != nil {
		return fmt.Errorf("scheduling pattern: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	logger.Infof("playing %s on %q at %.1f bpm, ctrl-c to stop", args[0], cfg.MIDIPort, cfg.TempoBPM)
	waitForInterrupt()
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := config.Load(cfgViper)
	logger := newLogger(cfg)

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.MIDIPort = port
	}
	if tempo, _ := cmd.Flags().GetFloat64("tempo"); tempo > 0 {
		cfg.TempoBPM = tempo
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	pattern, err := getDevice().ParseSeq(data)
	if err != nil {
		return fmt.Errorf("parsing pattern: %w", err)
	}

	sched, bsink, err := buildScheduler(cfg, logger, false)
	if err != nil {
		logger.Warnf("no MIDI sink available, monitoring in dry-run mode: %v", err)
		sched, bsink, err = buildScheduler(cfg, logger, true)
		if err != nil {
			return err
		}
	}
	defer sched.Stop()

	descs := converter.PatternToDescriptors(pattern, cfg.Channel)
	converter.SeedFirstTick(descs, sched.Future(startupLeadMs))
	if err := sched.AddNotes(descs); err != nil {
		return fmt.Errorf("scheduling pattern: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	return tui.RunMonitor(sched, bsink)
}

func buildScheduler(cfg *config.Config, logger *charmlog.Logger, dryRun bool) (*scheduler.Scheduler, *scheduler.BroadcastSink, error) {
	opts := []scheduler.Option{
		scheduler.WithBeatsPerMeasure(cfg.BeatsPerMeasure),
		scheduler.WithBeatUnit(cfg.BeatUnit),
		scheduler.WithTempoBPM(cfg.TempoBPM),
		scheduler.WithChannel(cfg.Channel),
		scheduler.WithLogger(logger),
		scheduler.WithSeed(cfg.Seed),
	}
	if cfg.PrintMsgs {
		opts = append(opts, scheduler.WithPrintMsgs())
	}

	var bsink *scheduler.BroadcastSink
	if dryRun {
		bsink = scheduler.NewBroadcastSink(scheduler.NewRecordingSink())
		opts = append(opts, scheduler.WithSink(bsink))
		sched, err := scheduler.New(cfg.MIDIPort, opts...)
		return sched, bsink, err
	}

	sink, err := scheduler.OpenSink(cfg.MIDIPort)
	if err != nil {
		return nil, nil, err
	}
	bsink = scheduler.NewBroadcastSink(sink)
	opts = append(opts, scheduler.WithSink(bsink))
	sched, err := scheduler.New(cfg.MIDIPort, opts...)
	return sched, bsink, err
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	cli "github.com/spf13/pflag"
	"github.com/spf13/viper"

	internal "github.com/errlens/errlens/errlens"
	"github.com/errlens/errlens/errlens/config"
	"github.com/errlens/errlens/errlens/models"
	"github.com/errlens/errlens/errlens/session"
	"github.com/errlens/errlens/errlens/session/adapters"
	ports "github.com/errlens/errlens/errlens/session/ports"
	"github.com/errlens/errlens/errlens/voice"
)

var logLevelMap = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

func main() {
	configPath := cli.StringP("config", "c", "", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level (debug|info|warn|error)")
	cli.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(levelFor(*logLevel)).
		With().Timestamp().Logger()

	godotenv.Load(*envFile)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Hot-reload only logs for now; collaborators pick up new settings on
	// the next session.
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info().Str("file", e.Name).Msg("config changed, restart to apply")
	})

	var db *sql.DB
	var archive *adapters.LibSQLTranscriptStore
	if cfg.Session.ArchiveDSN != "" {
		db, err = adapters.OpenArchive(cfg.Session.ArchiveDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open transcript archive")
		}
		defer db.Close()
		archive = adapters.NewLibSQLTranscriptStore(db)
	}

	ctrl, err := buildController(cfg, logger, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire session")
	}

	logger.Info().Str("session", ctrl.ID()).Msg("session ready")
	runREPL(ctrl, archive, logger)
}

func levelFor(name string) zerolog.Level {
	if lvl, ok := logLevelMap[name]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// buildController wires providers, the voice pipeline, and the model
// manager into one session controller.
func buildController(cfg *config.Config, logger zerolog.Logger, db *sql.DB) (*session.Controller, error) {
	chatCfg := models.ProviderConfig{
		ModelPath:   cfg.Models.ChatModelPath,
		ContextSize: cfg.Models.ContextSize,
		Threads:     cfg.Models.Threads,
		GPULayers:   cfg.Models.GPULayers,
		UseMMAP:     true,
	}
	gen, err := models.NewLlamaGenerator(chatCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}

	visCfg := chatCfg
	visCfg.ModelPath = cfg.Models.VisionModelPath
	vis, err := models.NewLlamaVision(visCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vision provider: %w", err)
	}

	stt, err := voice.NewWhisperTranscriber(cfg.Models.WhisperModelPath, voice.TranscribeOptions{
		Language: "auto",
		Threads:  cfg.Models.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	synth := voice.NewEspeakSynthesizer(cfg.Models.SynthesisVoice)

	pipeCfg := voice.PipelineConfig{
		SampleRate: cfg.Voice.SampleRate,
		GenOptions: ports.Options{
			MaxNewTokens: cfg.Models.MaxNewTokens,
			Temperature:  cfg.Models.Temperature,
			TopP:         cfg.Models.TopP,
		},
	}
	// At debug level, keep captured segments around for replay.
	if logger.GetLevel() <= zerolog.DebugLevel {
		pipeCfg.DumpDir = filepath.Join(internal.DefaultCacheDir, "captures")
	}
	pipe, err := voice.NewPipeline(stt, gen, synth, pipeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("voice pipeline: %w", err)
	}

	loader := models.NewManager(logger)
	loader.Register(ports.CategoryChat, gen.Load)
	loader.Register(ports.CategoryVision, vis.Load)
	loader.Register(ports.CategoryTranscription, stt.Load)
	loader.Register(ports.CategorySynthesis, synth.Probe)
	loader.Register(ports.CategoryActivityDetection, func(context.Context) error { return nil })

	factory := session.NewFactory(cfg, logger, db)
	return factory.CreateController(gen, vis, pipe, loader)
}

const replHelp = `commands:
  /mode text|vision|voice   switch input mode
  /voice start              begin a voice exchange
  /voice stop               stop listening
  /image <path>             analyze an image of an error
  /export [path]            print or save the session report
  /history <session-id>     replay an archived session
  /clear                    clear the conversation
  /status                   show session state
  /quit                     exit
anything else is submitted as error text`

func runREPL(ctrl *session.Controller, archive *adapters.LibSQLTranscriptStore, logger zerolog.Logger) {
	ctx := context.Background()
	fmt.Println("errlens debugging session. Type /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/help":
			fmt.Println(replHelp)

		case line == "/quit" || line == "/exit":
			return

		case strings.HasPrefix(line, "/mode "):
			mode := session.Mode(strings.TrimSpace(strings.TrimPrefix(line, "/mode ")))
			ctrl.SetMode(mode)
			fmt.Printf("mode: %s\n", ctrl.Mode())

		case line == "/voice start":
			if err := ctrl.StartVoice(ctx); err != nil {
				logger.Warn().Err(err).Msg("voice start failed")
			}
			fmt.Printf("voice: %s %s\n", ctrl.CurrentVoiceState(), ctrl.VoiceStatus())

		case line == "/voice stop":
			ctrl.StopVoice()
			fmt.Printf("voice: %s\n", ctrl.CurrentVoiceState())

		case strings.HasPrefix(line, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("cannot read %s: %s\n", path, err)
				continue
			}
			ctrl.UploadImage(ctx, data)
			printLast(ctrl)

		case line == "/export" || strings.HasPrefix(line, "/export "):
			report := ctrl.ExportReport()
			path := strings.TrimSpace(strings.TrimPrefix(line, "/export"))
			if path == "" {
				fmt.Println(report)
				continue
			}
			if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
				fmt.Printf("cannot write %s: %s\n", path, err)
				continue
			}
			fmt.Printf("report written to %s\n", path)

		case strings.HasPrefix(line, "/history "):
			if archive == nil {
				fmt.Println("transcript archive is not configured")
				continue
			}
			sid := strings.TrimSpace(strings.TrimPrefix(line, "/history "))
			recs, err := archive.LoadSession(ctx, sid)
			if err != nil {
				fmt.Printf("cannot load session %s: %s\n", sid, err)
				continue
			}
			if len(recs) == 0 {
				fmt.Printf("no archived turns for session %s\n", sid)
				continue
			}
			for _, rec := range recs {
				fmt.Printf("[%s] %s: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Role, rec.Content)
			}

		case line == "/clear":
			ctrl.ClearHistory()
			fmt.Println("history cleared")

		case line == "/status":
			v := ctrl.Snapshot()
			fmt.Printf("mode=%s processing=%v turns=%d voice=%s %s\n",
				v.Mode, v.Processing, len(v.Turns), v.VoiceState, v.VoiceStatus)

		default:
			ctrl.SubmitText(ctx, line)
			printLast(ctrl)
		}
	}
}

// printLast shows the newest assistant turn after a blocking submission.
func printLast(ctrl *session.Controller) {
	turns := ctrl.Snapshot().Turns
	if len(turns) == 0 {
		return
	}
	last := turns[len(turns)-1]
	fmt.Printf("[%s] %s\n", last.Role, last.Content)
	if a := last.Analysis; a != nil {
		fmt.Printf("  type=%s severity=%s\n", a.ErrorType, a.Severity)
		if a.RootCause != "" {
			fmt.Printf("  root cause: %s\n", a.RootCause)
		}
		if a.SuggestedFix != "" {
			fmt.Printf("  suggested fix: %s\n", a.SuggestedFix)
		}
	}
}

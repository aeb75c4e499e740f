// Command interview-cli runs a live practice session from the terminal:
// type answers, hear the interviewer through ffplay, interrupt and resume
// with slash commands.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mrchandrayee/interview-practice/pkg/live"
	practice "github.com/mrchandrayee/interview-practice/sdk"
)

type options struct {
	baseURL     string
	wsURL       string
	apiKey      string
	mode        string
	sessionID   string
	sampleRate  int
	volume      int
	ffplayPath  string
	noSpeaker   bool
	turnTimeout time.Duration
	debug       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	// Optional .env next to the binary; real env wins.
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.baseURL, "base-url", envOr("PRACTICE_BASE_URL", "http://localhost:8000"), "platform API base URL")
	flag.StringVar(&opts.wsURL, "ws-url", os.Getenv("PRACTICE_WS_URL"), "websocket base URL (defaults to base URL)")
	flag.StringVar(&opts.apiKey, "api-key", os.Getenv("PRACTICE_API_KEY"), "bearer token")
	flag.StringVar(&opts.mode, "mode", "interview", "session mode: interview or training")
	flag.StringVar(&opts.sessionID, "session", "", "interview or training session id (required)")
	flag.IntVar(&opts.sampleRate, "sample-rate", 24000, "playback sample rate in Hz")
	flag.IntVar(&opts.volume, "volume", 80, "ffplay volume (0-100)")
	flag.StringVar(&opts.ffplayPath, "ffplay", "ffplay", "path to the ffplay binary")
	flag.BoolVar(&opts.noSpeaker, "no-speaker", false, "discard agent audio")
	flag.DurationVar(&opts.turnTimeout, "turn-timeout", 0, "force a stalled agent turn back to idle after this long (0 disables)")
	flag.BoolVar(&opts.debug, "debug", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if opts.sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: interview-cli -session <id> [-mode interview|training]")
		return 2
	}

	client := practice.NewClient(
		practice.WithBaseURL(opts.baseURL),
		practice.WithWSBaseURL(opts.wsURL),
		practice.WithAPIKey(opts.apiKey),
		practice.WithLogger(logger),
	)

	var player live.Player
	var spk *speaker
	if !opts.noSpeaker {
		spk = newSpeaker(opts.ffplayPath, opts.sampleRate, 1, opts.volume)
		if err := spk.Start(); err != nil {
			logger.Warn("speaker unavailable, discarding audio", "error", err)
			spk = nil
		} else {
			defer spk.Close()
			player = spk
		}
	}

	liveOpts := practice.LiveOptions{
		Player:      player,
		TurnTimeout: opts.turnTimeout,
		OnError: func(err error) {
			logger.Error("session error", "error", err)
		},
		OnConnState: func(st live.ConnState) {
			logger.Info("connection state", "state", st)
		},
		OnAgentState: func(st live.AgentState) {
			logger.Debug("agent state", "state", st)
		},
		OnEntry: func(e live.Entry) {
			fmt.Printf("[%s] %s\n", e.Role, e.Content)
		},
		OnLesson: func(content json.RawMessage) {
			fmt.Printf("[lesson] %s\n", content)
		},
	}

	var session *live.Session
	var err error
	switch opts.mode {
	case "interview":
		session, err = client.Live.ConnectInterview(opts.sessionID, liveOpts)
	case "training":
		session, err = client.Live.ConnectTraining(opts.sessionID, liveOpts)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", opts.mode)
		return 2
	}
	if err != nil {
		logger.Error("connect failed", "error", err)
		return 1
	}
	defer session.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		session.Close()
		if spk != nil {
			spk.Close()
		}
		os.Exit(0)
	}()

	fmt.Println("connected; type to talk, /help for commands")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(session, line); quit {
				return 0
			}
			continue
		}

		switch session.Variant() {
		case live.VariantInterview:
			err = session.SendMessage(line)
		case live.VariantTraining:
			err = session.SubmitResponse(line, nil)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
	return 0
}

func runCommand(session *live.Session, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "interrupt", "i":
		err = session.Interrupt()
	case "resume", "r":
		err = session.Resume()
	case "lesson":
		err = session.StartLesson(arg)
	case "ask":
		err = session.AskQuestion(arg)
	case "transcript", "t":
		for _, e := range session.Transcript() {
			fmt.Printf("%s  [%s] %s\n", e.Timestamp.Format("15:04:05"), e.Role, e.Content)
		}
	case "state":
		fmt.Printf("conn=%s agent=%s\n", session.ConnState(), session.AgentState())
	case "quit", "q":
		return true
	case "help", "h":
		fmt.Println("/interrupt  stop the agent mid-turn")
		fmt.Println("/resume     continue after an interrupt")
		fmt.Println("/lesson ID  start a training lesson")
		fmt.Println("/ask Q      ask a lesson question")
		fmt.Println("/transcript print the transcript so far")
		fmt.Println("/state      print connection and agent state")
		fmt.Println("/quit       exit")
	default:
		fmt.Fprintf(os.Stderr, "unknown command /%s (try /help)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "! %v\n", err)
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

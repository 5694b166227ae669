// Command demo is a terminal client for the chat service. It runs the same
// components as the web server against a single in-process session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maizey-chat/internal/app"
	"maizey-chat/internal/application"
	"maizey-chat/internal/config"
	"maizey-chat/internal/domain/format"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/usecase"
)

const help = `commands:
  /new            start a new chat
  /history        list recent chats
  /load <id>      load a saved chat
  /delete <id>    delete a saved chat
  /clear          delete all saved chats
  /copy           print the last reply unformatted
  /status         show connection details
  /selftest       check the assistant connection
  /examples       list example questions
  /quit           exit
anything else is sent to the assistant`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	selfTest := flag.Bool("selftest", false, "check the assistant connection and exit")
	verbose := flag.Bool("v", false, "log at info level")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !*verbose {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Format = "console"
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	a, err := app.Build(ctx, cfg, logger, "demo")
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	a.Start(ctx)
	defer func() {
		closeCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = a.Close(closeCtx)
	}()

	if *selfTest {
		res := a.Facade.SelfTest(ctx)
		fmt.Println(res.Message)
		if !res.OK {
			os.Exit(1)
		}
		return
	}

	r := &repl{facade: a.Facade, st: usecase.NewSessionState(), out: os.Stdout, title: a.Translator.T("app_title")}
	r.run(ctx, os.Stdin)
}

type repl struct {
	facade *application.ChatFacade
	st     *usecase.SessionState
	out    io.Writer
	title  string
}

func (r *repl) run(ctx context.Context, in io.Reader) {
	fmt.Fprintf(r.out, "%s (type /help)\n", r.title)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !r.handle(ctx, strings.TrimSpace(sc.Text())) {
			return
		}
	}
}

// handle executes one input line and reports whether to keep going.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		msg, err := r.facade.Send(ctx, r.st, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return true
		}
		r.printSegments(msg.Segments)
		return true
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(r.out, help)
	case "/new":
		r.facade.NewChat(r.st)
		fmt.Fprintln(r.out, "started a new chat")
	case "/history":
		items := r.facade.Recent(ctx, 0)
		if len(items) == 0 {
			fmt.Fprintln(r.out, "no saved chats")
		}
		for _, it := range items {
			fmt.Fprintf(r.out, "%s  %s  %-40s (%d messages)\n", it.SessionID, it.Timestamp.Local().Format("Jan 2 15:04"), it.Title, it.MessageCount)
		}
	case "/load":
		view, ok := r.facade.Load(ctx, r.st, arg)
		if !ok {
			fmt.Fprintf(r.out, "chat %q not found\n", arg)
			return true
		}
		for _, m := range view.Messages {
			fmt.Fprintf(r.out, "[%s]\n", m.Role)
			r.printSegments(m.Segments)
		}
	case "/delete":
		if r.facade.Delete(ctx, arg) {
			fmt.Fprintln(r.out, "deleted")
		} else {
			fmt.Fprintf(r.out, "chat %q not deleted\n", arg)
		}
	case "/clear":
		if r.facade.ClearAll(ctx) {
			fmt.Fprintln(r.out, "history cleared")
		} else {
			fmt.Fprintln(r.out, "could not clear history")
		}
	case "/copy":
		text, ok := r.facade.LastReply(r.st)
		if !ok {
			fmt.Fprintln(r.out, "no reply yet")
			return true
		}
		fmt.Fprintln(r.out, text)
	case "/status":
		d := r.facade.Status(r.st)
		fmt.Fprintf(r.out, "%s via %s @ %s\n", d.Status, d.Provider, d.Endpoint)
		if d.Project != "" {
			fmt.Fprintf(r.out, "project: %s\n", d.Project)
		}
		if d.ConversationID != "" {
			fmt.Fprintf(r.out, "conversation: %s\n", d.ConversationID)
		}
		fmt.Fprintf(r.out, "token present: %t, history saved: %t\n", d.TokenPresent, d.Persistence)
	case "/selftest":
		fmt.Fprintln(r.out, r.facade.SelfTest(ctx).Message)
	case "/examples":
		for _, ex := range r.facade.Examples {
			fmt.Fprintf(r.out, "  %s\n", ex)
		}
	default:
		fmt.Fprintf(r.out, "unknown command %s\n", cmd)
	}
	return true
}

func (r *repl) printSegments(segs []format.Segment) {
	for _, s := range segs {
		if s.Kind == format.KindCode {
			fmt.Fprintf(r.out, "----- %s -----\n%s\n---------------\n", s.Language, strings.TrimRight(s.Body, "\n"))
			continue
		}
		fmt.Fprintln(r.out, s.Body)
	}
}
